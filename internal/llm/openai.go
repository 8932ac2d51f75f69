package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lukasbauer/sahayak/internal/dialogue"
)

const (
	openaiBaseURL = "https://api.openai.com/v1"
	// GroqBaseURL serves the same chat completions API.
	GroqBaseURL = "https://api.groq.com/openai/v1"
)

// OpenAIClient classifies utterances with an OpenAI-compatible chat
// completions API (OpenAI, Groq).
type OpenAIClient struct {
	apiKey       string
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // default OpenAI; GroqBaseURL for Groq
	Model        string // e.g., "gpt-4o-mini", "llama-3.3-70b-versatile"
	SystemPrompt string // Optional custom system prompt
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openaiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPromptHindi
	}
	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		model:        model,
		systemPrompt: systemPrompt,
		// Deadlines come from the caller's context.
		httpClient: &http.Client{},
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// ClassifyFallback asks the model for the intent and extracted facts.
func (c *OpenAIClient) ClassifyFallback(ctx context.Context, req dialogue.FallbackRequest) (dialogue.FallbackResult, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: UserPrompt(req)},
		},
		Temperature:    0,
		MaxTokens:      150,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return dialogue.FallbackResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return dialogue.FallbackResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return dialogue.FallbackResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return dialogue.FallbackResult{}, fmt.Errorf("chat completions API error: %s - %s", resp.Status, string(respBody))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return dialogue.FallbackResult{}, fmt.Errorf("%w: failed to decode response: %v", dialogue.ErrFallbackMalformed, err)
	}
	if len(chatResp.Choices) == 0 {
		return dialogue.FallbackResult{}, fmt.Errorf("%w: no choices in response", dialogue.ErrFallbackMalformed)
	}

	res, err := parseResult(chatResp.Choices[0].Message.Content)
	if err != nil {
		return dialogue.FallbackResult{}, err
	}
	res.Usage = dialogue.Usage{
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
	}
	return res, nil
}
