package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/storyreel/storyreel/internal/models"
)

func (db *DB) CreateAsset(ctx context.Context, asset *models.VideoAsset) error {
	query := `
		INSERT INTO video_assets (
			id, job_id, scene_id, type, storage_bucket, storage_path,
			url, content_type, byte_size, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		asset.ID, asset.JobID, asset.SceneID, asset.Type,
		asset.StorageBucket, asset.StoragePath, asset.URL,
		asset.ContentType, asset.ByteSize, asset.DurationMs,
	).Scan(&asset.CreatedAt)
}

func (db *DB) GetAsset(ctx context.Context, id uuid.UUID) (*models.VideoAsset, error) {
	query := `
		SELECT
			id, job_id, scene_id, type, storage_bucket, storage_path,
			url, content_type, byte_size, duration_ms, created_at
		FROM video_assets
		WHERE id = $1
	`

	asset := &models.VideoAsset{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&asset.ID, &asset.JobID, &asset.SceneID, &asset.Type,
		&asset.StorageBucket, &asset.StoragePath, &asset.URL,
		&asset.ContentType, &asset.ByteSize, &asset.DurationMs, &asset.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "asset", ID: id.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return asset, nil
}

func (db *DB) GetJobAssets(ctx context.Context, jobID uuid.UUID) ([]models.VideoAsset, error) {
	query := `
		SELECT
			id, job_id, scene_id, type, storage_bucket, storage_path,
			url, content_type, byte_size, duration_ms, created_at
		FROM video_assets
		WHERE job_id = $1
		ORDER BY created_at
	`

	rows, err := db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []models.VideoAsset
	for rows.Next() {
		var asset models.VideoAsset
		if err := rows.Scan(
			&asset.ID, &asset.JobID, &asset.SceneID, &asset.Type,
			&asset.StorageBucket, &asset.StoragePath, &asset.URL,
			&asset.ContentType, &asset.ByteSize, &asset.DurationMs, &asset.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// GetLatestFinalVideoAsset returns the most recent final_video asset for a
// job, used by the signed-URL download endpoint.
func (db *DB) GetLatestFinalVideoAsset(ctx context.Context, jobID uuid.UUID) (*models.VideoAsset, error) {
	query := `
		SELECT
			id, job_id, scene_id, type, storage_bucket, storage_path,
			url, content_type, byte_size, duration_ms, created_at
		FROM video_assets
		WHERE job_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	asset := &models.VideoAsset{}
	err := db.QueryRowContext(ctx, query, jobID, models.AssetTypeFinalVideo).Scan(
		&asset.ID, &asset.JobID, &asset.SceneID, &asset.Type,
		&asset.StorageBucket, &asset.StoragePath, &asset.URL,
		&asset.ContentType, &asset.ByteSize, &asset.DurationMs, &asset.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "final video asset", ID: jobID.String()}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get final video asset: %w", err)
	}

	return asset, nil
}
