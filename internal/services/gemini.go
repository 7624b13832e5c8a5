package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/storyreel/storyreel/internal/models"
)

const geminiImageModel = "gemini-3-pro-image-preview"

// GeminiService generates one still image per scene. Calls are independent
// and safe to run in parallel across scenes; the shared rate limiter keeps
// the aggregate request rate under the API quota.
type GeminiService struct {
	apiKey  string
	model   string
	limiter *rate.Limiter
}

// NewGeminiService creates an image generation service. requestsPerMinute
// bounds the call rate across all worker goroutines (<=0 disables limiting).
func NewGeminiService(apiKey string, requestsPerMinute int) *GeminiService {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &GeminiService{
		apiKey:  apiKey,
		model:   geminiImageModel,
		limiter: limiter,
	}
}

// GenerateSceneImage renders a scene from its effective prompt (locked
// character descriptor + scene prompt, composed by the caller) and returns
// the raw image bytes. Any transport or schema failure surfaces as a
// GenerationError.
func (s *GeminiService) GenerateSceneImage(ctx context.Context, effectivePrompt string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.GenerationError{Stage: "image", Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &models.GenerationError{Stage: "image", Err: fmt.Errorf("failed to create genai client: %w", err)}
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	log.Printf("[Gemini] Generating image (model=%s, promptLen=%d)", s.model, len(effectivePrompt))

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(effectivePrompt), config)
	if err != nil {
		return nil, &models.GenerationError{Stage: "image", Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &models.GenerationError{Stage: "image", Err: fmt.Errorf("no candidates in response")}
	}

	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			log.Printf("[Gemini] Image generated (%d bytes, %s)", len(part.InlineData.Data), part.InlineData.MIMEType)
			return part.InlineData.Data, nil
		}
		if part.Text != "" {
			textParts = append(textParts, part.Text)
		}
	}

	if len(textParts) > 0 {
		return nil, &models.GenerationError{
			Stage: "image",
			Err:   fmt.Errorf("model returned text instead of image: %s", truncateString(strings.Join(textParts, " "), 200)),
		}
	}
	return nil, &models.GenerationError{Stage: "image", Err: fmt.Errorf("no image data found in response")}
}
