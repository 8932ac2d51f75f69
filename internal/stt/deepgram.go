package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// deepgramChunkSize bounds a single websocket frame of audio.
const deepgramChunkSize = 8192

// DeepgramClient transcribes a recorded utterance over Deepgram's streaming
// websocket API: the audio is streamed, CloseStream is sent, and final
// segments are collected until the server closes the connection.
type DeepgramClient struct {
	apiKey  string
	model   string
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// DeepgramConfig holds configuration for the Deepgram client.
type DeepgramConfig struct {
	APIKey    string
	Model     string // e.g., "nova-2"
	Punctuate bool
	Timeout   time.Duration
	URL       string // override for tests
}

type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	IsFinal  bool    `json:"is_final"`
}

// NewDeepgramClient creates a new Deepgram STT client.
func NewDeepgramClient(cfg DeepgramConfig, logger *zap.Logger) *DeepgramClient {
	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	u := cfg.URL
	if u == "" {
		u = deepgramWSURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := url.Values{}
	q.Set("model", model)
	q.Set("punctuate", fmt.Sprintf("%t", cfg.Punctuate))
	return &DeepgramClient{
		apiKey:  cfg.APIKey,
		model:   model,
		url:     u + "?" + q.Encode(),
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}
}

// Transcribe streams audio and returns the joined final segments, or
// ErrorMarker on failure.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, language string) Transcript {
	if len(audio) == 0 {
		return Transcript{}
	}
	if language == "" {
		language = DefaultLanguage
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	t, err := c.transcribe(ctx, audio, language)
	if err != nil {
		c.logger.Warn("deepgram transcription failed", zap.Error(err))
		return failed()
	}
	return t
}

func (c *DeepgramClient) transcribe(ctx context.Context, audio []byte, language string) (Transcript, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.apiKey)

	conn, _, err := c.dialer.DialContext(ctx, c.url+"&language="+url.QueryEscape(language), headers)
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to connect to Deepgram: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	// Unblock ReadMessage if the caller gives up before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for off := 0; off < len(audio); off += deepgramChunkSize {
		end := min(off+deepgramChunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
			return Transcript{}, fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "CloseStream"}`)); err != nil {
		return Transcript{}, fmt.Errorf("failed to send CloseStream: %w", err)
	}

	var segments []string
	var seconds float64
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, websocket.ErrCloseSent) {
				break
			}
			if ctx.Err() != nil {
				return Transcript{}, ctx.Err()
			}
			return Transcript{}, fmt.Errorf("read error: %w", err)
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			c.logger.Debug("deepgram: failed to parse response", zap.Error(err))
			continue
		}
		if resp.Type == "Metadata" {
			break
		}
		if resp.Type != "Results" || !resp.IsFinal {
			continue
		}
		if end := resp.Start + resp.Duration; end > seconds {
			seconds = end
		}
		if len(resp.Channel.Alternatives) > 0 {
			if text := strings.TrimSpace(resp.Channel.Alternatives[0].Transcript); text != "" {
				segments = append(segments, text)
			}
		}
	}
	return Transcript{Text: strings.Join(segments, " "), Seconds: seconds}, nil
}
