package dialogue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/lukasbauer/sahayak/internal/metrics"
	"go.uber.org/zap"
)

var (
	// ErrFallbackTimeout is returned when the fallback classifier does not
	// answer within the classifier timeout.
	ErrFallbackTimeout = errors.New("fallback classifier timed out")
	// ErrFallbackMalformed is returned for fallback output that does not
	// satisfy the result contract.
	ErrFallbackMalformed = errors.New("fallback classifier returned malformed output")
	// ErrNoFallback is returned when no fallback classifier is configured.
	ErrNoFallback = errors.New("no fallback classifier configured")
)

// FallbackRequest is the context handed to the natural-language classifier.
type FallbackRequest struct {
	Utterance   string
	Stage       Stage
	SchemeNames []string
	Intents     []Intent
}

// Usage reports the tokens a fallback call consumed.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// FallbackResult is the structured output of the natural-language classifier.
type FallbackResult struct {
	Intent Intent
	Age    *int
	Income *int
	// SchemeName must be copied verbatim from FallbackRequest.SchemeNames.
	SchemeName string
	Usage      Usage
}

// Fallback classifies utterances that no deterministic rule matched.
type Fallback interface {
	ClassifyFallback(ctx context.Context, req FallbackRequest) (FallbackResult, error)
}

// Classification is the classifier's verdict for one utterance.
type Classification struct {
	Intent            Intent
	Age               *int
	Income            *int
	MatchedSchemeName string
	// Selected is the eligible scheme MatchedSchemeName resolved to.
	Selected *catalog.Scheme
	// Facts is a copy of the stored user info with any extracted values merged in.
	Facts UserInfo
	// Source names the rule that matched, "fallback", or "degraded".
	Source string
	Usage  Usage
}

// Classifier maps raw utterances to intents: deterministic rules first,
// then the fallback classifier.
type Classifier struct {
	fallback Fallback
	timeout  time.Duration
	logger   *zap.Logger
}

// ClassifierConfig holds configuration for the classifier.
type ClassifierConfig struct {
	Fallback Fallback      // nil makes every unmatched utterance degrade
	Timeout  time.Duration // bound on the fallback call, default 8s
}

// NewClassifier creates a classifier.
func NewClassifier(cfg ClassifierConfig, logger *zap.Logger) *Classifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{fallback: cfg.Fallback, timeout: timeout, logger: logger}
}

// Classify never fails: fallback errors degrade to provide_info when the
// utterance contains a number and to irrelevant otherwise.
func (c *Classifier) Classify(ctx context.Context, utterance string, state State) Classification {
	out := Classification{Facts: state.UserInfo.Clone()}

	if intent, name, ok := matchRules(utterance, state.Stage); ok {
		out.Intent = intent
		out.Source = "rule:" + name
		return out
	}

	res, err := c.callFallback(ctx, FallbackRequest{
		Utterance:   strings.TrimSpace(utterance),
		Stage:       state.Stage,
		SchemeNames: state.EligibleNames(),
		Intents:     FallbackIntents,
	})
	if err != nil {
		out.Intent = IntentIrrelevant
		if hasDigit(utterance) {
			out.Intent = IntentProvideInfo
		}
		out.Source = "degraded"
		c.logger.Warn("fallback classification failed",
			zap.String("stage", string(state.Stage)),
			zap.String("degraded_to", string(out.Intent)),
			zap.Error(err))
		return out
	}

	out.Intent = res.Intent
	out.Source = "fallback"
	out.Usage = res.Usage
	if res.Age != nil && *res.Age >= 0 {
		out.Age = intPtr(*res.Age)
		out.Facts.Age = intPtr(*res.Age)
	}
	if res.Income != nil && *res.Income >= 0 {
		out.Income = intPtr(*res.Income)
		out.Facts.Income = intPtr(*res.Income)
	}

	if name := strings.TrimSpace(res.SchemeName); name != "" {
		out.MatchedSchemeName = name
		for _, s := range state.EligibleSchemes {
			if s.Name == name {
				sel := s
				out.Selected = &sel
				out.Intent = IntentSelectScheme
				break
			}
		}
	}
	return out
}

func (c *Classifier) callFallback(ctx context.Context, req FallbackRequest) (FallbackResult, error) {
	if c.fallback == nil {
		return FallbackResult{}, ErrNoFallback
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.fallback.ClassifyFallback(ctx, req)
	metrics.FallbackDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.FallbackCalls.WithLabelValues("timeout").Inc()
			return FallbackResult{}, fmt.Errorf("%w: %v", ErrFallbackTimeout, err)
		}
		metrics.FallbackCalls.WithLabelValues("error").Inc()
		return FallbackResult{}, err
	}
	// An off-list label is tolerated when the scheme name resolves; the
	// match decides the intent.
	if !isFallbackIntent(res.Intent) && !slices.Contains(req.SchemeNames, strings.TrimSpace(res.SchemeName)) {
		metrics.FallbackCalls.WithLabelValues("malformed").Inc()
		return FallbackResult{}, fmt.Errorf("%w: unknown intent %q", ErrFallbackMalformed, res.Intent)
	}
	metrics.FallbackCalls.WithLabelValues("ok").Inc()
	return res, nil
}
