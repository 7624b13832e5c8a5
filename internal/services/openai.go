package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
	"github.com/storyreel/storyreel/internal/models"
)

type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// PlannedScene is a single scene in the generation plan
type PlannedScene struct {
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// ScenePlan is the complete structured plan for a job: exactly N scenes plus
// one character-feature descriptor shared by all of them.
type ScenePlan struct {
	Scenes            []PlannedScene           `json:"scenes"`
	CharacterFeatures models.CharacterFeatures `json:"character_features"`
}

// GenerateScenePlan turns a free-text concept into exactly sceneCount scenes
// and one locked character descriptor via a single JSON-mode chat call.
// An optional base image URL is attached as a vision part so the planner can
// describe the character from the reference. Any malformed or incomplete
// response is a GenerationError — nothing is persisted for a bad plan.
func (s *OpenAIService) GenerateScenePlan(ctx context.Context, concept string, baseImageURL *string, durationSeconds, sceneCount int) (*ScenePlan, error) {
	systemPrompt := buildPlanSystemPrompt(durationSeconds, sceneCount)

	userParts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("Create a %d-scene video plan for this concept: %q", sceneCount, concept),
		},
	}
	if baseImageURL != nil && *baseImageURL != "" {
		userParts = append(userParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    *baseImageURL,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: "gpt-5-mini",
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: userParts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})

	if err != nil {
		return nil, &models.GenerationError{Stage: "plan", Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &models.GenerationError{Stage: "plan", Err: fmt.Errorf("no response from openai")}
	}

	rawContent := resp.Choices[0].Message.Content

	var plan ScenePlan
	if err := json.Unmarshal([]byte(rawContent), &plan); err != nil {
		log.Printf("[OpenAI plan] parse failed: %v", err)
		log.Printf("[OpenAI plan] raw response: %s", truncateString(rawContent, 2000))
		return nil, &models.GenerationError{Stage: "plan", Err: fmt.Errorf("failed to parse plan: %w", err)}
	}

	if err := validateScenePlan(&plan, sceneCount); err != nil {
		log.Printf("[OpenAI plan] invalid plan: %v", err)
		log.Printf("[OpenAI plan] raw response: %s", truncateString(rawContent, 2000))
		return nil, &models.GenerationError{Stage: "plan", Err: err}
	}

	log.Printf("[OpenAI plan] plan generated: %d scenes, character style=%q",
		len(plan.Scenes), plan.CharacterFeatures.Style)

	return &plan, nil
}

// validateScenePlan enforces the schema the planner must return: exactly
// sceneCount scenes, every field populated, and a non-empty character
// descriptor.
func validateScenePlan(plan *ScenePlan, sceneCount int) error {
	if len(plan.Scenes) != sceneCount {
		return fmt.Errorf("expected exactly %d scenes, got %d", sceneCount, len(plan.Scenes))
	}

	for i, scene := range plan.Scenes {
		var missing []string
		if scene.Description == "" {
			missing = append(missing, "description")
		}
		if scene.Prompt == "" {
			missing = append(missing, "prompt")
		}
		if len(missing) > 0 {
			return fmt.Errorf("scene %d missing required fields: %v", i, missing)
		}
	}

	if plan.CharacterFeatures.IsEmpty() {
		return fmt.Errorf("plan has no character features")
	}

	return nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func buildPlanSystemPrompt(durationSeconds, sceneCount int) string {
	return fmt.Sprintf(`You are an expert short-form video director planning a %d-second video told in EXACTLY %d discrete visual scenes.

WRITING PROCESS - THINK LIKE A STORYTELLER, NOT A SHOT LIST:
Before writing any individual scene, mentally compose the entire narrative as one flowing story. Only then divide it into scenes. Each scene should feel like a natural beat in a continuous story, and the sequence should build momentum toward a satisfying final scene.

CHARACTER CONSISTENCY - CRITICAL:
The video follows ONE main character. Invent that character once and describe them in the character_features object:
- hair: color, length, texture (e.g. "short messy black hair")
- eyes: color and notable quality
- skin: tone
- clothing: the one outfit worn in every scene
- style: the overall visual rendering style (e.g. "cinematic photorealism, moody teal-and-orange grade")
These features are LOCKED: every scene prompt must depict this same character without restating the features (they are prepended automatically at generation time). If a reference image is attached, derive the character features from it.

SCENE FIELDS - ALL REQUIRED, NEVER EMPTY:
- description: one short sentence shown to the user in the scene list (what happens, plain language)
- prompt: a complete, detailed image generation prompt for the scene — subject action and pose, setting, lighting, time of day, atmosphere, depth layers (foreground/midground/background), composed for portrait 9:16 framing. Do NOT describe the character's fixed features; describe what the character DOES and WHERE.

Respond with JSON only, matching:
{"scenes": [{"description": "...", "prompt": "..."} x %d], "character_features": {"hair": "...", "eyes": "...", "skin": "...", "clothing": "...", "style": "..."}}

The scenes array MUST contain exactly %d entries, in story order. A response with any other count is invalid and will be rejected.`,
		durationSeconds, sceneCount, sceneCount, sceneCount)
}
