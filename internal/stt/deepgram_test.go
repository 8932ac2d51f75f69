package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

// fakeDeepgram answers CloseStream with the given messages, then closes.
func fakeDeepgram(t *testing.T, messages []string, received *[]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))
		assert.Equal(t, "hi", r.URL.Query().Get("language"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				*received = append(*received, data...)
				continue
			}
			if strings.Contains(string(data), "CloseStream") {
				break
			}
		}
		for _, m := range messages {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(m))
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDeepgramTranscribe(t *testing.T) {
	var received []byte
	srv := fakeDeepgram(t, []string{
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"मेरी"}]}}`,
		`{"type":"Results","is_final":true,"start":0,"duration":1.2,"channel":{"alternatives":[{"transcript":"मेरी उम्र"}]}}`,
		`not json`,
		`{"type":"Results","is_final":true,"start":1.2,"duration":0.8,"channel":{"alternatives":[{"transcript":"30 है"}]}}`,
		`{"type":"Metadata"}`,
	}, &received)
	defer srv.Close()

	audio := make([]byte, deepgramChunkSize*2+10)
	c := NewDeepgramClient(DeepgramConfig{APIKey: "dg-key", URL: wsURL(srv), Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	got := c.Transcribe(context.Background(), audio, "hi")

	assert.Equal(t, "मेरी उम्र 30 है", got.Text)
	assert.InDelta(t, 2.0, got.Seconds, 1e-9)
	assert.Len(t, received, len(audio))
}

func TestDeepgramTranscribe_NoSpeech(t *testing.T) {
	var received []byte
	srv := fakeDeepgram(t, nil, &received)
	defer srv.Close()

	c := NewDeepgramClient(DeepgramConfig{APIKey: "dg-key", URL: wsURL(srv)}, nil)
	got := c.Transcribe(context.Background(), []byte("silence"), "hi")
	assert.Equal(t, "", got.Text)
	assert.False(t, got.Failed())
}

func TestDeepgramTranscribe_DialFailure(t *testing.T) {
	c := NewDeepgramClient(DeepgramConfig{APIKey: "dg-key", URL: "ws://127.0.0.1:1/v1/listen", Timeout: time.Second}, nil)
	got := c.Transcribe(context.Background(), []byte("audio"), "hi")
	assert.True(t, got.Failed())
}
