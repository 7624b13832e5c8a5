package models

import "fmt"

// Failure taxonomy shared by the API layer and the worker. Every external-call
// failure is translated into one of these at the component boundary so no
// transport-level error leaks to clients.

// ValidationError covers malformed input: empty prompts, out-of-range scene
// counts, reorder lists that are not an exact permutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError marks an unknown job or scene id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// GenerationError wraps a failed or schema-invalid response from the text or
// image generation capability.
type GenerationError struct {
	Stage string // "plan" or "image"
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IncompleteScenesError is returned when assembly is attempted before every
// scene is complete. The job state is left untouched.
type IncompleteScenesError struct {
	JobID      string
	Incomplete int
}

func (e *IncompleteScenesError) Error() string {
	return fmt.Sprintf("job %s has %d incomplete scene(s); all scenes must be complete before assembly", e.JobID, e.Incomplete)
}

// EncodingError wraps a render, concatenate, download, or upload failure
// inside assembly.
type EncodingError struct {
	Step string // "download", "render", "concat", "upload"
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed at %s: %v", e.Step, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
