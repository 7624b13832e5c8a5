package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/models"
)

func validPlan(sceneCount int) *ScenePlan {
	plan := &ScenePlan{
		CharacterFeatures: models.CharacterFeatures{
			Hair:     "short silver hair",
			Eyes:     "dark brown",
			Skin:     "warm tan",
			Clothing: "navy field jacket",
			Style:    "cinematic photorealism",
		},
	}
	for i := 0; i < sceneCount; i++ {
		plan.Scenes = append(plan.Scenes, PlannedScene{
			Description: "The explorer crosses the ridge",
			Prompt:      "wide shot of a ridge at dawn, mist in the valley below",
		})
	}
	return plan
}

func TestValidateScenePlanAccepts(t *testing.T) {
	require.NoError(t, validateScenePlan(validPlan(5), 5))
}

func TestValidateScenePlanWrongCount(t *testing.T) {
	err := validateScenePlan(validPlan(4), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 5 scenes")

	err = validateScenePlan(validPlan(6), 5)
	require.Error(t, err)
}

func TestValidateScenePlanMissingFields(t *testing.T) {
	plan := validPlan(3)
	plan.Scenes[1].Prompt = ""
	err := validateScenePlan(plan, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene 1")

	plan = validPlan(3)
	plan.Scenes[2].Description = ""
	require.Error(t, validateScenePlan(plan, 3))
}

func TestValidateScenePlanEmptyFeatures(t *testing.T) {
	plan := validPlan(3)
	plan.CharacterFeatures = models.CharacterFeatures{}
	err := validateScenePlan(plan, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "character features")
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abc...", truncateString("abcdef", 3))
}
