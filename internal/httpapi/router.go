// Package httpapi is the HTTP and websocket surface the presentation shell
// talks to.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/sahayak/internal/assistant"
	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	// JWT session tokens. Session routes are open when JWTSecret is empty.
	JWTSecret string
	JWTExpiry time.Duration

	// Request limits
	MaxTextBytes  int64
	MaxAudioBytes int64
}

type Router struct {
	cfg       RouterConfig
	logger    *zap.Logger
	assistant *assistant.Service
	catalog   *catalog.Catalog
	turns     *TurnRegistry
	mux       *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *zap.Logger, svc *assistant.Service, cat *catalog.Catalog, turns *TurnRegistry) http.Handler {
	if cfg.JWTExpiry <= 0 {
		cfg.JWTExpiry = 24 * time.Hour
	}
	if cfg.MaxTextBytes <= 0 {
		cfg.MaxTextBytes = 16 << 10
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = 10 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cat == nil {
		cat = catalog.Empty()
	}
	if turns == nil {
		turns = NewTurnRegistry()
	}
	r := &Router{
		cfg:       cfg,
		logger:    logger,
		assistant: svc,
		catalog:   cat,
		turns:     turns,
		mux:       http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health and metrics
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Catalog (public)
	r.mux.HandleFunc("GET /api/schemes", r.handleListSchemes)
	r.mux.HandleFunc("GET /api/schemes/{name}", r.handleGetScheme)

	// Sessions
	r.mux.HandleFunc("POST /api/sessions", r.handleCreateSession)
	r.mux.HandleFunc("GET /api/sessions/{id}", r.withSessionAuth(r.handleGetSession))
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.withSessionAuth(r.handleDeleteSession))
	r.mux.HandleFunc("POST /api/sessions/{id}/turns", r.withSessionAuth(r.handleTurn))
	r.mux.HandleFunc("POST /api/sessions/{id}/voice", r.withSessionAuth(r.handleVoiceTurn))
	r.mux.HandleFunc("GET /api/sessions/{id}/ws", r.withSessionAuth(r.handleSessionWS))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if r.turns.IsDraining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleListSchemes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schemes": r.catalog.Schemes()})
}

func (r *Router) handleGetScheme(w http.ResponseWriter, req *http.Request) {
	s, ok := r.catalog.Lookup(req.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "scheme not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
