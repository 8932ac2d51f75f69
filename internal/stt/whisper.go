package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultWhisperBaseURL = "https://api.groq.com/openai/v1"

// WhisperClient transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint (Groq, OpenAI).
type WhisperClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// WhisperConfig holds configuration for the Whisper client.
type WhisperConfig struct {
	APIKey  string
	BaseURL string // default Groq
	Model   string // e.g., "whisper-large-v3"
	Timeout time.Duration
}

// NewWhisperClient creates a new Whisper transcription client.
func NewWhisperClient(cfg WhisperConfig, logger *zap.Logger) *WhisperClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-large-v3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhisperClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
}

// Transcribe uploads audio and returns the transcript, or ErrorMarker on failure.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, language string) Transcript {
	if len(audio) == 0 {
		return Transcript{}
	}
	if language == "" {
		language = DefaultLanguage
	}
	t, err := c.transcribe(ctx, audio, language)
	if err != nil {
		c.logger.Warn("whisper transcription failed", zap.Error(err))
		return failed()
	}
	return t
}

func (c *WhisperClient) transcribe(ctx context.Context, audio []byte, language string) (Transcript, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, fmt.Errorf("failed to write audio: %w", err)
	}
	fields := map[string]string{
		"model":           c.model,
		"language":        language,
		"response_format": "verbose_json",
		"temperature":     "0",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return Transcript{}, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return Transcript{}, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Transcript{}, fmt.Errorf("whisper API error: %s - %s", resp.Status, string(respBody))
	}

	var out whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Transcript{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return Transcript{Text: strings.TrimSpace(out.Text), Seconds: out.Duration}, nil
}
