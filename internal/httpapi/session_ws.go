package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
)

// Client frames: text frames carry {"text":"..."} (type "text" optional), binary
// frames carry one recorded utterance. Server frames are JSON events; a
// voice reply is followed by a binary frame with the synthesized audio.
type wsClientMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wsSessionEvent struct {
	Type string `json:"type"`
	sessionResponse
}

type wsTurnEvent struct {
	Type string `json:"type"`
	turnResponse
}

type wsErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) writeControl(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(messageType, data, time.Now().Add(wsWriteWait))
}

func (r *Router) handleSessionWS(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	state, err := r.assistant.Start(req.Context(), id)
	if err != nil {
		r.writeTurnError(w, req, id, err)
		return
	}

	raw, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("session_ws: upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	c := &wsConn{conn: raw}
	defer raw.Close()

	ctx, cancel := context.WithCancel(req.Context())

	raw.SetReadLimit(r.cfg.MaxAudioBytes)
	_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.writeControl(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	defer wg.Wait()
	defer cancel()

	if err := c.writeJSON(wsSessionEvent{Type: "session", sessionResponse: newSessionResponse(id, state)}); err != nil {
		return
	}
	r.logger.Info("session_ws: connected", zap.String("session_id", id))

	for {
		msgType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warn("session_ws: read failed", zap.String("session_id", id), zap.Error(err))
			}
			return
		}
		if !r.turns.Add() {
			_ = c.writeJSON(wsErrorEvent{Type: "error", Error: "server is shutting down"})
			_ = c.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "draining"))
			return
		}
		err = r.wsTurn(ctx, c, id, msgType, data)
		r.turns.Done()
		if err != nil {
			return
		}
	}
}

// wsTurn runs one turn and writes its events. A returned error ends the
// connection.
func (r *Router) wsTurn(ctx context.Context, c *wsConn, id string, msgType int, data []byte) error {
	switch msgType {
	case websocket.TextMessage:
		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || (msg.Type != "" && msg.Type != "text") {
			return c.writeJSON(wsErrorEvent{Type: "error", Error: "expected {\"type\":\"text\",\"text\":...}"})
		}
		reply, err := r.assistant.Advance(ctx, id, msg.Text)
		if err != nil && reply.Text == "" {
			return r.wsError(c, id, err)
		}
		ev := wsTurnEvent{Type: "reply", turnResponse: newTurnResponse(id, reply)}
		if err != nil {
			ev.Error = "temporarily unavailable"
		}
		return c.writeJSON(ev)

	case websocket.BinaryMessage:
		vr, err := r.assistant.AdvanceVoice(ctx, id, data)
		if err != nil && vr.Text == "" {
			return r.wsError(c, id, err)
		}
		ev := wsTurnEvent{Type: "reply", turnResponse: newTurnResponse(id, vr.Reply)}
		ev.Transcript = vr.Transcript
		if err != nil {
			ev.Error = "temporarily unavailable"
		}
		if err := c.writeJSON(ev); err != nil {
			return err
		}
		if vr.Audio != nil {
			return c.writeBinary(vr.Audio)
		}
		return nil
	}
	return nil
}

func (r *Router) wsError(c *wsConn, id string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	r.logger.Warn("session_ws: turn failed", zap.String("session_id", id), zap.Error(err))
	return c.writeJSON(wsErrorEvent{Type: "error", Error: err.Error()})
}
