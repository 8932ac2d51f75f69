package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lukasbauer/sahayak/internal/httpapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func testConfig() Config {
	return Config{
		SessionBackend: "memory",
		LLMProvider:    "none",
		STTProvider:    "whisper",
		LanguageHint:   "hi",
		TTSStability:   -1,
		TTSSimilarity:  -1,
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Positive(t, a.Catalog().Len(), "built-in catalog")

	h := a.Router(httpapi.NewTurnRegistry())
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/app-1/turns", strings.NewReader(`{"text":"नमस्ते"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNew_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = a.Assistant().Advance(context.Background(), "app-2", "नमस्ते")
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)
	assert.NoError(t, a.Close())
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown session backend", func(c *Config) { c.SessionBackend = "etcd" }},
		{"postgres without database", func(c *Config) { c.SessionBackend = "postgres" }},
		{"unreachable redis", func(c *Config) { c.SessionBackend = "redis"; c.RedisAddr = "127.0.0.1:1" }},
		{"unknown llm provider", func(c *Config) { c.LLMProvider = "eliza" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
			assert.Error(t, err)
		})
	}
}

func TestNew_MissingKeysDisableProviders(t *testing.T) {
	cfg := testConfig()
	cfg.LLMProvider = "openai"
	cfg.STTProvider = "deepgram"

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.transcriber())
	assert.Nil(t, a.synthesizer())
	fb, err := a.fallback(context.Background())
	require.NoError(t, err)
	assert.Nil(t, fb)
}

func TestNew_UnreadableCatalogNotifies(t *testing.T) {
	var hits atomic.Int32
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.SchemesPath = t.TempDir() + "/missing.json"
	cfg.DiscordWebhookURL = srv.URL

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 0, a.Catalog().Len())
	require.NoError(t, a.Close())

	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, body.Load().(string), "missing.json")
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger("debug", format)
		require.NoError(t, err, format)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "debug enabled for %s", format)
	}

	_, err := NewLogger("loud", "json")
	assert.Error(t, err)
}
