package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const elevenLabsAPIURL = "https://api.elevenlabs.io/v1/text-to-speech"

// ElevenLabsClient synthesizes speech with ElevenLabs' API.
type ElevenLabsClient struct {
	apiKey       string
	voiceID      string
	modelID      string
	stability    float64
	similarity   float64
	outputFormat string
	baseURL      string
	httpClient   *http.Client
	logger       *zap.Logger
}

// ElevenLabsConfig holds configuration for the ElevenLabs client.
// Stability and Similarity use -1 (any negative) for the provider defaults;
// 0 is a valid setting.
type ElevenLabsConfig struct {
	APIKey       string
	VoiceID      string
	ModelID      string // e.g., "eleven_flash_v2_5" for low latency
	Stability    float64
	Similarity   float64
	OutputFormat string // default mp3_44100_128
	BaseURL      string
	Timeout      time.Duration
}

// NewElevenLabsClient creates a new ElevenLabs client.
func NewElevenLabsClient(cfg ElevenLabsConfig, logger *zap.Logger) *ElevenLabsClient {
	c := &ElevenLabsClient{
		apiKey:       cfg.APIKey,
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		stability:    cfg.Stability,
		similarity:   cfg.Similarity,
		outputFormat: cfg.OutputFormat,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		logger:       logger,
	}
	if c.voiceID == "" {
		c.voiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if c.modelID == "" {
		c.modelID = "eleven_flash_v2_5" // multilingual, supports Hindi
	}
	if c.stability < 0 {
		c.stability = 0.5
	}
	if c.similarity < 0 {
		c.similarity = 0.75
	}
	if c.outputFormat == "" {
		c.outputFormat = "mp3_44100_128"
	}
	if c.baseURL == "" {
		c.baseURL = elevenLabsAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to speech. It returns nil when there is nothing
// to say or the request failed.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, language string) []byte {
	text = SpeechText(text)
	if text == "" {
		return nil
	}
	audio, err := c.synthesize(ctx, text, language)
	if err != nil {
		c.logger.Warn("elevenlabs synthesis failed", zap.Error(err), zap.Int("chars", len([]rune(text))))
		return nil
	}
	return audio
}

func (c *ElevenLabsClient) synthesize(ctx context.Context, text, language string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s?output_format=%s", c.baseURL, c.voiceID, c.outputFormat)

	body, err := json.Marshal(ttsRequest{
		Text:         text,
		ModelID:      c.modelID,
		LanguageCode: language,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	return audio, nil
}
