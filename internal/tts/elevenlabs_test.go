package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsClient_VoiceSettings(t *testing.T) {
	// -1 (any negative) selects the default; 0 is a valid setting.
	tests := []struct {
		name           string
		stability      float64
		similarity     float64
		wantStability  float64
		wantSimilarity float64
	}{
		{"sentinels use defaults", -1, -1, 0.5, 0.75},
		{"custom stability", 0.8, -1, 0.8, 0.75},
		{"custom similarity", -1, 0.9, 0.5, 0.9},
		{"custom both", 0.3, 0.6, 0.3, 0.6},
		{"zero is valid", 0, 0, 0, 0},
		{"any negative uses defaults", -0.2, -5, 0.5, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewElevenLabsClient(ElevenLabsConfig{
				APIKey:     "test-key",
				Stability:  tt.stability,
				Similarity: tt.similarity,
			}, nil)
			if client.stability != tt.wantStability {
				t.Errorf("stability = %f, want %f", client.stability, tt.wantStability)
			}
			if client.similarity != tt.wantSimilarity {
				t.Errorf("similarity = %f, want %f", client.similarity, tt.wantSimilarity)
			}
		})
	}
}

func TestNewElevenLabsClient_Defaults(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{APIKey: "test-key"}, nil)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", client.voiceID)
	assert.Equal(t, "eleven_flash_v2_5", client.modelID)
	assert.Equal(t, "mp3_44100_128", client.outputFormat)

	client = NewElevenLabsClient(ElevenLabsConfig{VoiceID: "custom-voice-id", ModelID: "eleven_multilingual_v2"}, nil)
	assert.Equal(t, "custom-voice-id", client.voiceID)
	assert.Equal(t, "eleven_multilingual_v2", client.modelID)
}

func TestElevenLabsSynthesize(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/voice-1", r.URL.Path)
		assert.Equal(t, "mp3_44100_128", r.URL.Query().Get("output_format"))
		assert.Equal(t, "el-key", r.Header.Get("xi-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{
		APIKey:     "el-key",
		VoiceID:    "voice-1",
		BaseURL:    srv.URL,
		Stability:  -1,
		Similarity: 0.2,
	}, zaptest.NewLogger(t))

	audio := c.Synthesize(context.Background(), "**PM Kisan**: [यहाँ](https://pmkisan.gov.in) आवेदन करें", "hi")
	assert.Equal(t, []byte("ID3audio"), audio)
	assert.Equal(t, "PM Kisan: यहाँ आवेदन करें", got.Text)
	assert.Equal(t, "hi", got.LanguageCode)
	assert.Equal(t, "eleven_flash_v2_5", got.ModelID)
	assert.Equal(t, voiceSettings{Stability: 0.5, SimilarityBoost: 0.2}, got.VoiceSettings)
}

func TestElevenLabsSynthesize_FailureReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota_exceeded"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{BaseURL: srv.URL, Stability: -1, Similarity: -1}, zaptest.NewLogger(t))
	assert.Nil(t, c.Synthesize(context.Background(), "नमस्ते", "hi"))
}

func TestElevenLabsSynthesize_EmptyTextSkipsRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{BaseURL: srv.URL}, nil)
	assert.Nil(t, c.Synthesize(context.Background(), " ** ", "hi"))
	assert.Zero(t, calls)
}
