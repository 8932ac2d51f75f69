// Package eventlog records conversation events in Postgres.
package eventlog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// EventType represents the type of conversation event
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionDeleted      EventType = "session_deleted"
	EventTurnCompleted       EventType = "turn_completed"
	EventTurnFailed          EventType = "turn_failed"
	EventTurnAbandoned       EventType = "turn_abandoned"
	EventClassifierDegraded  EventType = "classifier_degraded"
	EventSTTFailed           EventType = "stt_failed"
	EventTTSFailed           EventType = "tts_failed"
	EventApplicationInterest EventType = "application_interest"
)

// Logger provides async event logging to the database. A Logger without a
// pool drops every event.
type Logger struct {
	db      *pgxpool.Pool
	logger  *zap.Logger
	pending sync.WaitGroup
}

// New creates a new event logger
func New(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{db: db, logger: logger}
}

// Enabled reports whether events are persisted.
func (l *Logger) Enabled() bool {
	return l != nil && l.db != nil
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, sessionID string, eventType EventType, data map[string]any) error {
	if !l.Enabled() || sessionID == "" {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil || data == nil {
		payload = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO conversation_events (session_id, event_type, payload)
		VALUES ($1, $2, $3)
	`, sessionID, string(eventType), payload)
	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(sessionID string, eventType EventType, data map[string]any) {
	if !l.Enabled() || sessionID == "" {
		return
	}

	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Log(ctx, sessionID, eventType, data); err != nil {
			l.logger.Warn("failed to log event",
				zap.String("session_id", sessionID),
				zap.String("event", string(eventType)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until queued async events are written or ctx is done.
func (l *Logger) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		l.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
