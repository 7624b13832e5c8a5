package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/storyreel/storyreel/internal/models"
)

// CreateJobWithScenes persists a planned job and its scenes as a single
// transaction. On any failure the whole plan is rolled back — no partial job
// is ever visible to polling clients.
func (db *DB) CreateJobWithScenes(ctx context.Context, job *models.VideoJob, scenes []models.VideoScene) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	jobQuery := `
		INSERT INTO video_jobs (
			id, owner_id, concept, base_image_url, duration_seconds, scene_count,
			status, progress, character_features, motion_intensity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	if err := tx.QueryRowContext(
		ctx, jobQuery,
		job.ID, job.OwnerID, job.Concept, job.BaseImageURL,
		job.DurationSeconds, job.SceneCount, job.Status, job.Progress,
		job.CharacterFeatures, job.MotionIntensity,
	).Scan(&job.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	sceneQuery := `
		INSERT INTO video_scenes (
			id, job_id, sequence_index, description, prompt, status, regeneration_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	for i := range scenes {
		s := &scenes[i]
		if err := tx.QueryRowContext(
			ctx, sceneQuery,
			s.ID, s.JobID, s.SequenceIndex, s.Description, s.Prompt,
			s.Status, s.RegenerationCount,
		).Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert scene %d: %w", s.SequenceIndex, err)
		}
	}

	return tx.Commit()
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.VideoJob, error) {
	query := `
		SELECT
			id, owner_id, concept, base_image_url, duration_seconds, scene_count,
			status, progress, character_features, motion_intensity,
			video_url, error_message, created_at, completed_at
		FROM video_jobs
		WHERE id = $1
	`

	job := &models.VideoJob{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.OwnerID, &job.Concept, &job.BaseImageURL,
		&job.DurationSeconds, &job.SceneCount, &job.Status, &job.Progress,
		&job.CharacterFeatures, &job.MotionIntensity,
		&job.VideoURL, &job.ErrorMessage, &job.CreatedAt, &job.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "job", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// MarkJobProcessing moves a queued job to processing. A no-op for jobs that
// are already processing (or terminal) so concurrent scene workers don't
// fight over the transition.
func (db *DB) MarkJobProcessing(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE video_jobs SET status = $1 WHERE id = $2 AND status = $3`
	_, err := db.ExecContext(ctx, query, models.JobStatusProcessing, id, models.JobStatusQueued)
	return err
}

// UpdateJobGenerationProgress recomputes progress from completed scene count.
// GREATEST keeps it monotonic even when two scene workers finish out of order
// and both recompute.
func (db *DB) UpdateJobGenerationProgress(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE video_jobs
		SET progress = GREATEST(progress, (
			SELECT COALESCE(100 * COUNT(*) FILTER (WHERE status = $1) / NULLIF(COUNT(*), 0), 0)
			FROM video_scenes
			WHERE job_id = $2
		))
		WHERE id = $2 AND status != $3
	`
	_, err := db.ExecContext(ctx, query, models.SceneStatusComplete, id, models.JobStatusComplete)
	return err
}

// StartAssembly is the first assembly checkpoint: status=processing,
// progress=10, and the prior attempt's leftovers cleared in the same write.
// Clearing video_url together with the status flip keeps "complete iff
// video_url set" observable at every instant, including when a job is
// re-assembled after a scene regeneration; clearing error_message mirrors
// what ClaimScene does for scenes on a retry.
func (db *DB) StartAssembly(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = 10, video_url = NULL, error_message = NULL
		WHERE id = $2
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusProcessing, id)
	return err
}

// SetJobProgress writes progress directly. Used by assembly for the
// checkpoints after StartAssembly, walking the bar to 100.
func (db *DB) SetJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	query := `UPDATE video_jobs SET status = $1, progress = $2 WHERE id = $3`
	_, err := db.ExecContext(ctx, query, models.JobStatusProcessing, progress, id)
	return err
}

func (db *DB) SetJobFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE video_jobs
		SET status = $1, error_message = $2
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, id)
	return err
}

// SetJobComplete records the final video URL and terminal state in one write
// so "status=complete" and "video_url set" can never be observed apart.
func (db *DB) SetJobComplete(ctx context.Context, id uuid.UUID, videoURL string) error {
	query := `
		UPDATE video_jobs
		SET status = $1, progress = 100, video_url = $2, error_message = NULL, completed_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusComplete, videoURL, id)
	return err
}
