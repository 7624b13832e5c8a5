package db

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/models"
)

// Integration tests run only against a real database; set TEST_DATABASE_URL
// to a postgres DSN with the schema applied to enable them.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	database, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func insertTestJob(t *testing.T, database *DB, sceneCount int) (*models.VideoJob, []models.VideoScene) {
	t.Helper()
	job := &models.VideoJob{
		ID:              uuid.New(),
		Concept:         "a lighthouse keeper's last night",
		DurationSeconds: 30,
		SceneCount:      sceneCount,
		Status:          models.JobStatusQueued,
		CharacterFeatures: models.CharacterFeatures{
			Hair: "grey beard", Eyes: "pale blue", Skin: "weathered",
			Clothing: "oilskin coat", Style: "cinematic photorealism",
		},
		MotionIntensity: 0.6,
	}
	scenes := make([]models.VideoScene, sceneCount)
	for i := range scenes {
		scenes[i] = models.VideoScene{
			ID:            uuid.New(),
			JobID:         job.ID,
			SequenceIndex: i,
			Description:   "beat",
			Prompt:        "the keeper climbs the spiral stair",
			Status:        models.SceneStatusPending,
		}
	}
	require.NoError(t, database.CreateJobWithScenes(context.Background(), job, scenes))
	return job, scenes
}

func TestStartAssemblyClearsPriorFailure(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	job, _ := insertTestJob(t, database, 3)
	require.NoError(t, database.SetJobFailed(ctx, job.ID, "encoding failed at concat: exit status 1"))

	// Retrying assembly must not leave the old error visible while processing
	require.NoError(t, database.StartAssembly(ctx, job.ID))

	got, err := database.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, 10, got.Progress)
	assert.Nil(t, got.ErrorMessage)
	assert.Nil(t, got.VideoURL)
}

func TestStartAssemblyClearsVideoURLWithStatus(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	job, _ := insertTestJob(t, database, 3)
	require.NoError(t, database.SetJobComplete(ctx, job.ID, "https://cdn.example.com/final_a1b2c3d4.mp4"))

	// Re-assembling a complete job leaves "complete iff video_url set" intact:
	// the status flip and the url clear land in one write
	require.NoError(t, database.StartAssembly(ctx, job.ID))

	got, err := database.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Nil(t, got.VideoURL)
}

func TestSetJobCompleteSetsURLAndProgressTogether(t *testing.T) {
	database := testDB(t)
	ctx := context.Background()

	job, _ := insertTestJob(t, database, 3)
	require.NoError(t, database.StartAssembly(ctx, job.ID))
	require.NoError(t, database.SetJobComplete(ctx, job.ID, "https://cdn.example.com/final_deadbeef.mp4"))

	got, err := database.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusComplete, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.VideoURL)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.ErrorMessage)
}
