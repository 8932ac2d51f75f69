package llm

import (
	"context"
	"fmt"

	"github.com/lukasbauer/sahayak/internal/dialogue"
	"google.golang.org/genai"
)

// contentGenerator is the part of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient classifies utterances with the Gemini API.
type GeminiClient struct {
	models       contentGenerator
	model        string
	systemPrompt string
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	Model        string // e.g., "gemini-2.0-flash"
	SystemPrompt string
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiClient(client.Models, cfg), nil
}

func newGeminiClient(models contentGenerator, cfg GeminiConfig) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPromptHindi
	}
	return &GeminiClient{models: models, model: model, systemPrompt: systemPrompt}
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// ClassifyFallback asks Gemini for the intent and extracted facts.
func (c *GeminiClient) ClassifyFallback(ctx context.Context, req dialogue.FallbackRequest) (dialogue.FallbackResult, error) {
	resp, err := c.models.GenerateContent(ctx, c.model,
		genai.Text(UserPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(c.systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
			MaxOutputTokens:   150,
		})
	if err != nil {
		return dialogue.FallbackResult{}, fmt.Errorf("gemini generate content: %w", err)
	}

	res, err := parseResult(resp.Text())
	if err != nil {
		return dialogue.FallbackResult{}, err
	}
	if u := resp.UsageMetadata; u != nil {
		res.Usage = dialogue.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
		}
	}
	return res, nil
}
