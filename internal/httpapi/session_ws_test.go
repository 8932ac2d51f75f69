package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/sahayak/internal/assistant"
	"github.com/lukasbauer/sahayak/internal/dialogue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, s testServer, id string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestSessionWS_TextTurns(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, assistant.Config{})
	conn := dialSession(t, s, "ws-1")

	var hello wsSessionEvent
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "session", hello.Type)
	assert.Equal(t, "ws-1", hello.SessionID)
	assert.Equal(t, dialogue.StageIntro, hello.Stage)

	require.NoError(t, conn.WriteJSON(wsClientMessage{Type: "text", Text: "नमस्ते"}))
	var reply wsTurnEvent
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, dialogue.ReplyGreeting, reply.Reply)
	assert.Equal(t, dialogue.IntentGreeting, reply.Intent)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	var bad wsErrorEvent
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "error", bad.Type)
}

func TestSessionWS_VoiceTurn(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, assistant.Config{
		Transcriber: stubTranscriber{text: "नमस्ते"},
		Synthesizer: stubSynthesizer{},
	})
	conn := dialSession(t, s, "ws-2")

	var hello wsSessionEvent
	require.NoError(t, conn.ReadJSON(&hello))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("RIFF....")))
	var reply wsTurnEvent
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "नमस्ते", reply.Transcript)
	assert.Equal(t, dialogue.ReplyGreeting, reply.Reply)

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)
	assert.Equal(t, "mp3-bytes", string(data))
}

func TestSessionWS_DrainingClosesConnection(t *testing.T) {
	s := newTestServer(t, RouterConfig{}, assistant.Config{})
	conn := dialSession(t, s, "ws-3")

	var hello wsSessionEvent
	require.NoError(t, conn.ReadJSON(&hello))

	s.turns.StartDraining()
	require.NoError(t, conn.WriteJSON(wsClientMessage{Type: "text", Text: "नमस्ते"}))

	var ev wsErrorEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestSessionWS_AuthRequired(t *testing.T) {
	s := newTestServer(t, RouterConfig{JWTSecret: "test-secret"}, assistant.Config{})
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/ws-4/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
