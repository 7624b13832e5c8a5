package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storyreel/storyreel/internal/models"
)

func TestEffectivePrompt(t *testing.T) {
	features := models.CharacterFeatures{
		Hair:     "long red braid",
		Eyes:     "green",
		Clothing: "grey wool coat",
	}

	prompt := EffectivePrompt(features, "she walks through a rain-slicked market at night")

	// Descriptor prefix comes first, scene prompt after
	assert.True(t, strings.HasPrefix(prompt, "Main character"))
	assert.Contains(t, prompt, "hair: long red braid")
	assert.Contains(t, prompt, "Scene: she walks through a rain-slicked market at night")
	assert.Less(t, strings.Index(prompt, "hair:"), strings.Index(prompt, "Scene:"))
}

func TestEffectivePromptTrimsScenePrompt(t *testing.T) {
	features := models.CharacterFeatures{Style: "watercolor"}

	prompt := EffectivePrompt(features, "  a quiet harbor at dusk  ")
	assert.Contains(t, prompt, "Scene: a quiet harbor at dusk")
	assert.NotContains(t, prompt, "dusk  ")
}

func TestEffectivePromptEmptyDescriptor(t *testing.T) {
	// No descriptor: scene prompt passes through untouched
	prompt := EffectivePrompt(models.CharacterFeatures{}, "a quiet harbor at dusk")
	assert.Equal(t, "a quiet harbor at dusk", prompt)
}

func TestEffectivePromptIsStableAcrossScenes(t *testing.T) {
	features := models.CharacterFeatures{
		Hair: "buzz cut", Eyes: "blue", Skin: "fair", Clothing: "orange parka", Style: "35mm film",
	}

	a := EffectivePrompt(features, "scene one")
	b := EffectivePrompt(features, "scene two")

	// Identical descriptor prefix regardless of the scene
	prefixA := strings.SplitN(a, "Scene:", 2)[0]
	prefixB := strings.SplitN(b, "Scene:", 2)[0]
	assert.Equal(t, prefixA, prefixB)
}
