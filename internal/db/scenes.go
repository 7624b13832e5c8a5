package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/storyreel/storyreel/internal/models"
)

const sceneColumns = `
	id, job_id, sequence_index, description, prompt, status,
	image_url, regeneration_count, error_message, created_at, updated_at
`

func scanScene(row interface{ Scan(...interface{}) error }, s *models.VideoScene) error {
	return row.Scan(
		&s.ID, &s.JobID, &s.SequenceIndex, &s.Description, &s.Prompt, &s.Status,
		&s.ImageURL, &s.RegenerationCount, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt,
	)
}

func (db *DB) GetScene(ctx context.Context, id uuid.UUID) (*models.VideoScene, error) {
	query := `SELECT ` + sceneColumns + ` FROM video_scenes WHERE id = $1`

	scene := &models.VideoScene{}
	err := scanScene(db.QueryRowContext(ctx, query, id), scene)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "scene", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	return scene, nil
}

func (db *DB) GetJobScenes(ctx context.Context, jobID uuid.UUID) ([]models.VideoScene, error) {
	query := `SELECT ` + sceneColumns + ` FROM video_scenes WHERE job_id = $1 ORDER BY sequence_index`

	rows, err := db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []models.VideoScene
	for rows.Next() {
		var s models.VideoScene
		if err := scanScene(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, s)
	}

	return scenes, rows.Err()
}

// ClaimScene moves a pending scene to generating. Returns false when the
// scene was already claimed by another worker (or is past pending) — the
// per-scene lock that guarantees no scene is generated twice concurrently.
func (db *DB) ClaimScene(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE video_scenes
		SET status = $1, error_message = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	res, err := db.ExecContext(ctx, query, models.SceneStatusGenerating, id, models.SceneStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim scene: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClaimSceneForRegeneration atomically replaces the prompt and moves the
// scene to generating, but only from a terminal state — a scene that is
// currently generating cannot be regenerated. Returns false when the
// precondition did not hold.
func (db *DB) ClaimSceneForRegeneration(ctx context.Context, id uuid.UUID, newPrompt string) (bool, error) {
	query := `
		UPDATE video_scenes
		SET prompt = $1, status = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)
	`
	res, err := db.ExecContext(
		ctx, query,
		newPrompt, models.SceneStatusGenerating, id,
		models.SceneStatusComplete, models.SceneStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim scene for regeneration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetSceneComplete records the generated image URL. incrementRegen bumps the
// regeneration counter when the generation ran on behalf of a regenerate
// request. The prior image URL is simply overwritten — the counter is the
// only history kept.
func (db *DB) SetSceneComplete(ctx context.Context, id uuid.UUID, imageURL string, incrementRegen bool) error {
	bump := 0
	if incrementRegen {
		bump = 1
	}
	query := `
		UPDATE video_scenes
		SET status = $1, image_url = $2, error_message = NULL,
			regeneration_count = regeneration_count + $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.SceneStatusComplete, imageURL, bump, id)
	return err
}

func (db *DB) SetSceneFailed(ctx context.Context, id uuid.UUID, errorMessage string, incrementRegen bool) error {
	bump := 0
	if incrementRegen {
		bump = 1
	}
	query := `
		UPDATE video_scenes
		SET status = $1, error_message = $2,
			regeneration_count = regeneration_count + $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.SceneStatusFailed, errorMessage, bump, id)
	return err
}

// ReorderScenes rewrites each scene's sequence index to its position in
// orderedIDs. The whole operation runs in one transaction with the job's
// scene rows locked, so a concurrent regeneration can't observe a torn
// ordering. The supplied list must be an exact permutation of the job's
// current scene ids; anything else is a validation failure and nothing
// changes.
func (db *DB) ReorderScenes(ctx context.Context, jobID uuid.UUID, orderedIDs []uuid.UUID) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM video_scenes WHERE job_id = $1 FOR UPDATE`, jobID)
	if err != nil {
		return fmt.Errorf("failed to lock scenes: %w", err)
	}

	current := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan scene id: %w", err)
		}
		current[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read scene ids: %w", err)
	}

	if len(current) == 0 {
		return &models.NotFoundError{Resource: "job", ID: jobID.String()}
	}

	if err := validatePermutation(current, orderedIDs); err != nil {
		return err
	}

	for idx, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE video_scenes SET sequence_index = $1, updated_at = NOW() WHERE id = $2`,
			idx, id); err != nil {
			return fmt.Errorf("failed to update scene index: %w", err)
		}
	}

	return tx.Commit()
}

// validatePermutation checks orderedIDs against the job's current scene id
// set: same length, no duplicates, no foreign ids.
func validatePermutation(current map[uuid.UUID]bool, orderedIDs []uuid.UUID) error {
	if len(orderedIDs) != len(current) {
		return &models.ValidationError{Msg: fmt.Sprintf(
			"scene order must list all %d scenes exactly once, got %d ids", len(current), len(orderedIDs))}
	}

	seen := make(map[uuid.UUID]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return &models.ValidationError{Msg: fmt.Sprintf("duplicate scene id in order: %s", id)}
		}
		if !current[id] {
			return &models.ValidationError{Msg: fmt.Sprintf("scene %s does not belong to this job", id)}
		}
		seen[id] = true
	}

	return nil
}

// CountIncompleteScenes returns how many of a job's scenes are not yet
// complete. Zero means the job is ready for assembly.
func (db *DB) CountIncompleteScenes(ctx context.Context, jobID uuid.UUID) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM video_scenes WHERE job_id = $1 AND status != $2`,
		jobID, models.SceneStatusComplete).Scan(&count)
	return count, err
}
