package worker

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/models"
)

func completeScene(idx int) models.VideoScene {
	url := "https://example.com/scene.png"
	return models.VideoScene{
		ID:            uuid.New(),
		SequenceIndex: idx,
		Status:        models.SceneStatusComplete,
		ImageURL:      &url,
	}
}

func TestCheckScenesAssemblable(t *testing.T) {
	jobID := uuid.New()
	empty := ""

	tests := []struct {
		name       string
		mutate     func(scenes []models.VideoScene)
		incomplete int
	}{
		{"all complete", func([]models.VideoScene) {}, 0},
		{"one pending", func(s []models.VideoScene) {
			s[1].Status = models.SceneStatusPending
			s[1].ImageURL = nil
		}, 1},
		{"one failed", func(s []models.VideoScene) {
			s[2].Status = models.SceneStatusFailed
		}, 1},
		{"complete without url", func(s []models.VideoScene) {
			s[0].ImageURL = nil
		}, 1},
		{"complete with empty url", func(s []models.VideoScene) {
			s[0].ImageURL = &empty
		}, 1},
		{"several incomplete", func(s []models.VideoScene) {
			s[0].Status = models.SceneStatusGenerating
			s[2].Status = models.SceneStatusFailed
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes := []models.VideoScene{completeScene(0), completeScene(1), completeScene(2)}
			tt.mutate(scenes)

			err := checkScenesAssemblable(jobID, scenes)
			if tt.incomplete == 0 {
				assert.NoError(t, err)
				return
			}

			var incErr *models.IncompleteScenesError
			require.True(t, errors.As(err, &incErr), "expected IncompleteScenesError, got %v", err)
			assert.Equal(t, tt.incomplete, incErr.Incomplete)
			assert.Equal(t, jobID.String(), incErr.JobID)
		})
	}
}
