package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestCharacterFeaturesValue(t *testing.T) {
	c := CharacterFeatures{
		Hair:     "short messy black hair",
		Eyes:     "bright green",
		Skin:     "olive",
		Clothing: "worn denim jacket",
		Style:    "cinematic photorealism",
	}

	data, err := c.Value()
	if err != nil {
		t.Fatalf("failed to marshal features: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["hair"] != "short messy black hair" {
		t.Errorf("expected hair to round-trip, got %v", result["hair"])
	}
}

func TestCharacterFeaturesScan(t *testing.T) {
	jsonData := []byte(`{"hair": "silver bob", "eyes": "grey", "skin": "pale", "clothing": "red coat", "style": "watercolor"}`)

	var c CharacterFeatures
	if err := c.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if c.Hair != "silver bob" {
		t.Errorf("expected hair=silver bob, got %q", c.Hair)
	}
	if c.Style != "watercolor" {
		t.Errorf("expected style=watercolor, got %q", c.Style)
	}
}

func TestCharacterFeaturesScanNil(t *testing.T) {
	c := CharacterFeatures{Hair: "stale"}
	if err := c.Scan(nil); err != nil {
		t.Fatalf("failed to scan nil: %v", err)
	}
	if !c.IsEmpty() {
		t.Errorf("expected features reset on nil scan, got %+v", c)
	}
}

func TestPromptPrefix(t *testing.T) {
	c := CharacterFeatures{
		Hair:     "long red braid",
		Eyes:     "amber",
		Clothing: "leather armor",
	}

	prefix := c.PromptPrefix()
	if !strings.Contains(prefix, "hair: long red braid") {
		t.Errorf("expected hair in prefix, got %q", prefix)
	}
	if !strings.Contains(prefix, "clothing: leather armor") {
		t.Errorf("expected clothing in prefix, got %q", prefix)
	}
	// Empty fields are skipped entirely
	if strings.Contains(prefix, "skin") || strings.Contains(prefix, "style") {
		t.Errorf("expected empty fields omitted, got %q", prefix)
	}
}

func TestPromptPrefixEmpty(t *testing.T) {
	var c CharacterFeatures
	if c.PromptPrefix() != "" {
		t.Errorf("expected empty prefix for empty features, got %q", c.PromptPrefix())
	}
	if !c.IsEmpty() {
		t.Error("expected IsEmpty for zero value")
	}
}

func TestJobStatus(t *testing.T) {
	statuses := []JobStatus{
		JobStatusPending,
		JobStatusQueued,
		JobStatusProcessing,
		JobStatusComplete,
		JobStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestSceneStatus(t *testing.T) {
	statuses := []SceneStatus{
		SceneStatusPending,
		SceneStatusGenerating,
		SceneStatusComplete,
		SceneStatusFailed,
	}

	for _, status := range statuses {
		if status == "" {
			t.Errorf("empty status found")
		}
	}
}

func TestGenerationErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("upstream timeout")
	err := &GenerationError{Stage: "image", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through GenerationError")
	}

	var genErr *GenerationError
	if !errors.As(error(err), &genErr) {
		t.Fatal("expected errors.As to match GenerationError")
	}
	if genErr.Stage != "image" {
		t.Errorf("expected stage=image, got %q", genErr.Stage)
	}
}

func TestEncodingErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := &EncodingError{Step: "concat", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to see through EncodingError")
	}
	if !strings.Contains(err.Error(), "concat") {
		t.Errorf("expected step in message, got %q", err.Error())
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{Resource: "job", ID: "abc-123"}
	if !strings.Contains(err.Error(), "job") || !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("expected resource and id in message, got %q", err.Error())
	}
}
