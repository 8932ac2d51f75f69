// Package assistant runs conversation turns: it serializes turns per session,
// loads state, classifies, decides, and saves the new state.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/lukasbauer/sahayak/internal/costs"
	"github.com/lukasbauer/sahayak/internal/dialogue"
	"github.com/lukasbauer/sahayak/internal/eventlog"
	"github.com/lukasbauer/sahayak/internal/metrics"
	"github.com/lukasbauer/sahayak/internal/notifications"
	"github.com/lukasbauer/sahayak/internal/session"
	"github.com/lukasbauer/sahayak/internal/stt"
	"github.com/lukasbauer/sahayak/internal/tts"
	"go.uber.org/zap"
)

// ErrInvalidSession is returned for session identifiers the store cannot key.
var ErrInvalidSession = errors.New("invalid session id")

// ErrSessionExists is returned by Create for an id that is already in use.
var ErrSessionExists = errors.New("session already exists")

// EventLogger records conversation events without blocking.
type EventLogger interface {
	LogAsync(sessionID string, eventType eventlog.EventType, data map[string]any)
}

// Notifier is told when a user confirms they want to apply for a scheme.
type Notifier interface {
	NotifyApplicationInterest(ai notifications.ApplicationInterest)
}

// Config holds the collaborators of a Service.
type Config struct {
	Store      session.Store
	Classifier *dialogue.Classifier
	Engine     *dialogue.Engine

	// Optional.
	Transcriber stt.Transcriber // nil disables voice turns
	Synthesizer tts.Synthesizer // nil means text-only replies
	Events      EventLogger
	Notifier    Notifier
	Pricing     costs.Pricing
	Language    string // default "hi"
}

// Service is the turn invocation entry point.
type Service struct {
	store       session.Store
	classifier  *dialogue.Classifier
	engine      *dialogue.Engine
	transcriber stt.Transcriber
	synthesizer tts.Synthesizer
	events      EventLogger
	notifier    Notifier
	pricing     costs.Pricing
	language    string
	locks       *session.Locker
	logger      *zap.Logger
}

// New creates a Service.
func New(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = dialogue.NewClassifier(dialogue.ClassifierConfig{}, logger)
	}
	if cfg.Engine == nil {
		cfg.Engine = dialogue.NewEngine(catalog.Empty(), dialogue.EngineOptions{})
	}
	if cfg.Store == nil {
		cfg.Store = session.NewMemoryStore()
	}
	if cfg.Language == "" {
		cfg.Language = stt.DefaultLanguage
	}
	locks := session.NewLocker()
	locks.Observe(func(active int) { metrics.SessionsBusy.Set(float64(active)) })
	return &Service{
		store:       cfg.Store,
		classifier:  cfg.Classifier,
		engine:      cfg.Engine,
		transcriber: cfg.Transcriber,
		synthesizer: cfg.Synthesizer,
		events:      cfg.Events,
		notifier:    cfg.Notifier,
		pricing:     cfg.Pricing,
		language:    cfg.Language,
		locks:       locks,
		logger:      logger,
	}
}

// Reply is the outcome of one turn.
type Reply struct {
	Text            string
	Stage           dialogue.Stage
	Intent          dialogue.Intent
	Source          string
	EligibleSchemes []catalog.Scheme
	Costs           costs.TurnCosts
}

// Start returns the state of session id, creating it on first contact.
func (s *Service) Start(ctx context.Context, id string) (dialogue.State, error) {
	return s.start(ctx, id, false)
}

// Create starts a new session id. It fails with ErrSessionExists when the id
// is taken, so a caller never gains access to someone else's conversation.
func (s *Service) Create(ctx context.Context, id string) (dialogue.State, error) {
	return s.start(ctx, id, true)
}

func (s *Service) start(ctx context.Context, id string, exclusive bool) (dialogue.State, error) {
	if !session.ValidID(id) {
		return dialogue.State{}, ErrInvalidSession
	}
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return dialogue.State{}, err
	}
	defer unlock()

	state, ok, err := s.store.Load(ctx, id)
	if err != nil {
		return dialogue.State{}, s.transportError("store_load", id, err)
	}
	if ok {
		if exclusive {
			return dialogue.State{}, ErrSessionExists
		}
		return state, nil
	}
	state = dialogue.NewState()
	if err := s.store.Save(ctx, id, state); err != nil {
		return dialogue.State{}, s.transportError("store_save", id, err)
	}
	s.logEvent(id, eventlog.EventSessionStarted, nil)
	return state, nil
}

// State returns the stored state of session id without creating it.
func (s *Service) State(ctx context.Context, id string) (dialogue.State, bool, error) {
	if !session.ValidID(id) {
		return dialogue.State{}, false, ErrInvalidSession
	}
	state, ok, err := s.store.Load(ctx, id)
	if err != nil {
		return dialogue.State{}, false, s.transportError("store_load", id, err)
	}
	return state, ok, nil
}

// Delete forgets session id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if !session.ValidID(id) {
		return ErrInvalidSession
	}
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return s.transportError("store_delete", id, err)
	}
	s.logEvent(id, eventlog.EventSessionDeleted, nil)
	return nil
}

// Advance processes one user utterance for session id. Turns on the same
// session run one at a time. On a store failure the reply is the technical
// error message, the error is returned, and the stored state is unchanged.
// If ctx is cancelled before the new state is saved the turn is discarded.
func (s *Service) Advance(ctx context.Context, id, text string) (Reply, error) {
	start := time.Now()
	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()
	defer func() { metrics.TurnDuration.WithLabelValues("text").Observe(time.Since(start).Seconds()) }()

	reply, _, err := s.advance(ctx, id, text)
	return reply, err
}

func (s *Service) advance(ctx context.Context, id, text string) (Reply, dialogue.Usage, error) {
	if !session.ValidID(id) {
		return Reply{}, dialogue.Usage{}, ErrInvalidSession
	}
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return Reply{}, dialogue.Usage{}, err
	}
	defer unlock()

	state, ok, err := s.store.Load(ctx, id)
	if err != nil {
		return technicalError(dialogue.State{Stage: dialogue.StageIntro}), dialogue.Usage{}, s.transportError("store_load", id, err)
	}
	if !ok {
		state = dialogue.NewState()
		s.logEvent(id, eventlog.EventSessionStarted, nil)
	}

	cls := s.classifier.Classify(ctx, text, state)
	decision := s.engine.Decide(cls, state)
	next := state.Next(text, cls.Intent, decision)

	if err := ctx.Err(); err != nil {
		s.logEvent(id, eventlog.EventTurnAbandoned, map[string]any{"intent": string(cls.Intent)})
		return Reply{}, cls.Usage, err
	}
	if err := s.store.Save(ctx, id, next); err != nil {
		return technicalError(state), cls.Usage, s.transportError("store_save", id, err)
	}

	metrics.TurnsTotal.WithLabelValues(string(cls.Intent), string(next.Stage)).Inc()
	turnCosts := s.pricing.Calculate(costs.TurnUsage{
		LLMInputTokens:  cls.Usage.PromptTokens,
		LLMOutputTokens: cls.Usage.CompletionTokens,
	})
	if turnCosts.LLMCents > 0 {
		metrics.ProviderCostCents.WithLabelValues("llm").Add(turnCosts.LLMCents)
	}

	s.logEvent(id, eventlog.EventTurnCompleted, map[string]any{
		"intent":     string(cls.Intent),
		"source":     cls.Source,
		"stage_from": string(state.Stage),
		"stage_to":   string(next.Stage),
		"eligible":   len(next.EligibleSchemes),
	})
	if cls.Source == "degraded" {
		s.logEvent(id, eventlog.EventClassifierDegraded, map[string]any{"intent": string(cls.Intent)})
	}
	if cls.Intent == dialogue.IntentConfirmApply && state.Stage == dialogue.StageSchemeDetail && state.SelectedScheme != nil {
		s.applicationInterest(id, state)
	}

	s.logger.Debug("turn completed",
		zap.String("session_id", id),
		zap.String("intent", string(cls.Intent)),
		zap.String("source", cls.Source),
		zap.String("stage", string(next.Stage)))

	return Reply{
		Text:            decision.Utterance,
		Stage:           next.Stage,
		Intent:          cls.Intent,
		Source:          cls.Source,
		EligibleSchemes: next.EligibleSchemes,
		Costs:           turnCosts,
	}, cls.Usage, nil
}

func (s *Service) applicationInterest(id string, state dialogue.State) {
	sel := state.SelectedScheme
	s.logEvent(id, eventlog.EventApplicationInterest, map[string]any{"scheme": sel.Name})
	if s.notifier == nil {
		return
	}
	info := state.UserInfo.Clone()
	s.notifier.NotifyApplicationInterest(notifications.ApplicationInterest{
		SessionID: id,
		Scheme:    sel.Name,
		Link:      sel.Link,
		Age:       info.Age,
		Income:    info.Income,
	})
}

// technicalError is the reply for a turn that failed on a transport error.
// It reports the unchanged state.
func technicalError(state dialogue.State) Reply {
	return Reply{
		Text:            dialogue.ReplyTechnicalError,
		Stage:           state.Stage,
		EligibleSchemes: state.EligibleSchemes,
	}
}

func (s *Service) transportError(kind, id string, err error) error {
	metrics.TurnErrors.WithLabelValues(kind).Inc()
	s.logger.Error("session store failure",
		zap.String("kind", kind),
		zap.String("session_id", id),
		zap.Error(err))
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("kind", kind)
		scope.SetTag("session_id", id)
		sentry.CaptureException(err)
	})
	s.logEvent(id, eventlog.EventTurnFailed, map[string]any{"kind": kind, "error": err.Error()})
	return fmt.Errorf("%s: %w", kind, err)
}

func (s *Service) logEvent(id string, t eventlog.EventType, data map[string]any) {
	if s.events != nil {
		s.events.LogAsync(id, t, data)
	}
}
