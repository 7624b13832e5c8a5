package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

type SceneStatus string

const (
	SceneStatusPending    SceneStatus = "pending"
	SceneStatusGenerating SceneStatus = "generating"
	SceneStatusComplete   SceneStatus = "complete"
	SceneStatusFailed     SceneStatus = "failed"
)

type AssetType string

const (
	AssetTypeSceneImage AssetType = "scene_image"
	AssetTypeFinalVideo AssetType = "final_video"
)

// CharacterFeatures is the locked visual descriptor generated once at planning
// time and reused verbatim in every scene's image prompt so the character looks
// the same across scenes. Stored as a JSONB column; immutable after creation.
type CharacterFeatures struct {
	Hair     string `json:"hair"`
	Eyes     string `json:"eyes"`
	Skin     string `json:"skin"`
	Clothing string `json:"clothing"`
	Style    string `json:"style"`
}

func (c CharacterFeatures) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CharacterFeatures) Scan(value interface{}) error {
	if value == nil {
		*c = CharacterFeatures{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into CharacterFeatures", value)
	}
	return json.Unmarshal(bytes, c)
}

// PromptPrefix renders the descriptor as the fixed prefix prepended to every
// scene prompt. Empty fields are skipped so a sparse descriptor still reads
// naturally.
func (c CharacterFeatures) PromptPrefix() string {
	parts := make([]string, 0, 5)
	if c.Hair != "" {
		parts = append(parts, "hair: "+c.Hair)
	}
	if c.Eyes != "" {
		parts = append(parts, "eyes: "+c.Eyes)
	}
	if c.Skin != "" {
		parts = append(parts, "skin: "+c.Skin)
	}
	if c.Clothing != "" {
		parts = append(parts, "clothing: "+c.Clothing)
	}
	if c.Style != "" {
		parts = append(parts, "style: "+c.Style)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Main character (keep identical in every scene) — " + strings.Join(parts, ", ")
}

// IsEmpty reports whether no feature field is populated.
func (c CharacterFeatures) IsEmpty() bool {
	return c.Hair == "" && c.Eyes == "" && c.Skin == "" && c.Clothing == "" && c.Style == ""
}

// Models

type VideoJob struct {
	ID                uuid.UUID         `json:"id"`
	OwnerID           *uuid.UUID        `json:"owner_id,omitempty"`
	Concept           string            `json:"concept"`
	BaseImageURL      *string           `json:"base_image_url,omitempty"`
	DurationSeconds   int               `json:"duration_seconds"`
	SceneCount        int               `json:"scene_count"`
	Status            JobStatus         `json:"status"`
	Progress          int               `json:"progress"` // 0-100
	CharacterFeatures CharacterFeatures `json:"character_features"`
	MotionIntensity   float64           `json:"motion_intensity"` // 0.0-1.0, scales pan/zoom in assembly
	VideoURL          *string           `json:"video_url,omitempty"`
	ErrorMessage      *string           `json:"error_message,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
}

type VideoScene struct {
	ID                uuid.UUID   `json:"id"`
	JobID             uuid.UUID   `json:"job_id"`
	SequenceIndex     int         `json:"sequence_index"`
	Description       string      `json:"description"`
	Prompt            string      `json:"prompt"`
	Status            SceneStatus `json:"status"`
	ImageURL          *string     `json:"image_url,omitempty"`
	RegenerationCount int         `json:"regeneration_count"`
	ErrorMessage      *string     `json:"error_message,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

type VideoAsset struct {
	ID            uuid.UUID  `json:"id"`
	JobID         uuid.UUID  `json:"job_id"`
	SceneID       *uuid.UUID `json:"scene_id,omitempty"`
	Type          AssetType  `json:"type"`
	StorageBucket string     `json:"storage_bucket"`
	StoragePath   string     `json:"storage_path"`
	URL           string     `json:"url"`
	ContentType   *string    `json:"content_type,omitempty"`
	ByteSize      *int64     `json:"byte_size,omitempty"`
	DurationMs    *int       `json:"duration_ms,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DTOs for API requests/responses

type CreateJobRequest struct {
	Concept         string   `json:"concept"`
	BaseImageURL    *string  `json:"base_image_url,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"` // Default: 30
	SceneCount      *int     `json:"scene_count,omitempty"`      // Default: 5, bounds 3-15
	MotionIntensity *float64 `json:"motion_intensity,omitempty"` // Default: env RENDER_MOTION_INTENSITY
}

type CreateJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type JobResponse struct {
	VideoJob
	Scenes []VideoScene `json:"scenes"`
}

type RegenerateSceneRequest struct {
	Prompt string `json:"prompt"`
}

type ReorderScenesRequest struct {
	SceneIDs []uuid.UUID `json:"scene_ids"`
}
