package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/lukasbauer/sahayak/internal/assistant"
	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/lukasbauer/sahayak/internal/costs"
	"github.com/lukasbauer/sahayak/internal/dialogue"
	"github.com/lukasbauer/sahayak/internal/session"
	"go.uber.org/zap"
)

type sessionResponse struct {
	SessionID       string             `json:"session_id"`
	Token           string             `json:"token,omitempty"`
	Greeting        string             `json:"greeting,omitempty"`
	Stage           dialogue.Stage     `json:"stage"`
	Messages        []dialogue.Message `json:"messages"`
	UserInfo        dialogue.UserInfo  `json:"user_info"`
	EligibleSchemes []catalog.Scheme   `json:"eligible_schemes"`
	SelectedScheme  *catalog.Scheme    `json:"selected_scheme,omitempty"`
}

type turnResponse struct {
	SessionID       string           `json:"session_id"`
	Reply           string           `json:"reply"`
	Stage           dialogue.Stage   `json:"stage"`
	Intent          dialogue.Intent  `json:"intent,omitempty"`
	Source          string           `json:"source,omitempty"`
	EligibleSchemes []catalog.Scheme `json:"eligible_schemes"`
	Costs           costs.TurnCosts  `json:"costs"`
	Error           string           `json:"error,omitempty"`

	// Voice turns only
	Transcript string `json:"transcript,omitempty"`
	Audio      string `json:"audio_base64,omitempty"` // mp3
}

func newSessionResponse(id string, state dialogue.State) sessionResponse {
	resp := sessionResponse{
		SessionID:       id,
		Stage:           state.Stage,
		Messages:        state.Messages,
		UserInfo:        state.UserInfo,
		EligibleSchemes: state.EligibleSchemes,
		SelectedScheme:  state.SelectedScheme,
	}
	if resp.Messages == nil {
		resp.Messages = []dialogue.Message{}
	}
	if resp.EligibleSchemes == nil {
		resp.EligibleSchemes = []catalog.Scheme{}
	}
	return resp
}

func newTurnResponse(id string, reply assistant.Reply) turnResponse {
	resp := turnResponse{
		SessionID:       id,
		Reply:           reply.Text,
		Stage:           reply.Stage,
		Intent:          reply.Intent,
		Source:          reply.Source,
		EligibleSchemes: reply.EligibleSchemes,
		Costs:           reply.Costs,
	}
	if resp.EligibleSchemes == nil {
		resp.EligibleSchemes = []catalog.Scheme{}
	}
	return resp
}

func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	var body struct {
		SessionID string `json:"session_id"`
	}
	if req.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(req.Body, r.cfg.MaxTextBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	id := strings.TrimSpace(body.SessionID)
	if id == "" {
		id = session.NewID()
	}
	if !session.ValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid session_id")
		return
	}

	// With auth on, only the holder of a token for id may resume it. Anyone
	// else gets a new session or a conflict.
	start := r.assistant.Start
	if r.authEnabled() && !r.holdsToken(req, id) {
		start = r.assistant.Create
	}
	state, err := start(req.Context(), id)
	if errors.Is(err, assistant.ErrSessionExists) {
		writeError(w, http.StatusConflict, "session already exists")
		return
	}
	if err != nil {
		r.writeTurnError(w, req, id, err)
		return
	}
	token, err := r.issueToken(id)
	if err != nil {
		r.logger.Error("sign session token", zap.String("session_id", id), zap.Error(err))
		captureError(req, err, "sessions: sign token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	resp := newSessionResponse(id, state)
	resp.Token = token
	// Resumed sessions greet with the last assistant line.
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == dialogue.RoleAssistant {
			resp.Greeting = state.Messages[i].Text
			break
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	state, ok, err := r.assistant.State(req.Context(), id)
	if err != nil {
		r.writeTurnError(w, req, id, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, state))
}

func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.assistant.Delete(req.Context(), id); err != nil {
		r.writeTurnError(w, req, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleTurn(w http.ResponseWriter, req *http.Request) {
	if !r.turns.Add() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer r.turns.Done()

	id := req.PathValue("id")
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, r.cfg.MaxTextBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	reply, err := r.assistant.Advance(req.Context(), id, body.Text)
	if err != nil {
		if reply.Text != "" {
			resp := newTurnResponse(id, reply)
			resp.Error = "temporarily unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		r.writeTurnError(w, req, id, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurnResponse(id, reply))
}

// handleVoiceTurn takes the raw recorded audio as the request body.
func (r *Router) handleVoiceTurn(w http.ResponseWriter, req *http.Request) {
	if !r.turns.Add() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	defer r.turns.Done()

	id := req.PathValue("id")
	audio, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.cfg.MaxAudioBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read audio")
		return
	}

	vr, err := r.assistant.AdvanceVoice(req.Context(), id, audio)
	if err != nil && vr.Text == "" {
		r.writeTurnError(w, req, id, err)
		return
	}
	resp := newTurnResponse(id, vr.Reply)
	resp.Transcript = vr.Transcript
	if vr.Audio != nil {
		resp.Audio = base64.StdEncoding.EncodeToString(vr.Audio)
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = "temporarily unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// writeTurnError maps service errors to HTTP responses.
func (r *Router) writeTurnError(w http.ResponseWriter, req *http.Request, id string, err error) {
	switch {
	case errors.Is(err, assistant.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid session id")
	case errors.Is(err, assistant.ErrVoiceUnavailable):
		writeError(w, http.StatusNotImplemented, "voice is not configured")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.logger.Info("turn abandoned", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		r.logger.Error("session request failed", zap.String("session_id", id), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "temporarily unavailable",
			"reply": dialogue.ReplyTechnicalError,
		})
	}
}
