package dialogue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubFallback returns a canned result and records the last request.
type stubFallback struct {
	result FallbackResult
	err    error
	delay  time.Duration
	calls  int
	last   FallbackRequest
}

func (s *stubFallback) ClassifyFallback(ctx context.Context, req FallbackRequest) (FallbackResult, error) {
	s.calls++
	s.last = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return FallbackResult{}, ctx.Err()
		}
	}
	return s.result, s.err
}

func newTestClassifier(t *testing.T, fb Fallback) *Classifier {
	t.Helper()
	return NewClassifier(ClassifierConfig{Fallback: fb, Timeout: 50 * time.Millisecond}, zaptest.NewLogger(t))
}

var pmYojana = catalog.Scheme{Name: "PM Yojana", MinAge: 18, MaxIncome: 50000, Description: "किसानों के लिए", Link: "https://example.gov.in/pm"}

func TestClassifyRulesSkipFallback(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: IntentIrrelevant}}
	c := newTestClassifier(t, fb)

	cls := c.Classify(context.Background(), "नमस्ते", NewState())
	assert.Equal(t, IntentGreeting, cls.Intent)
	assert.Equal(t, "rule:greeting", cls.Source)
	assert.Zero(t, fb.calls)
}

func TestClassifyFallbackRequest(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: IntentAskAllBenefits}}
	c := newTestClassifier(t, fb)

	state := NewState()
	state.Stage = StageSchemesPresented
	state.EligibleSchemes = []catalog.Scheme{pmYojana}

	cls := c.Classify(context.Background(), "  सभी लाभ बताइए ", state)
	assert.Equal(t, IntentAskAllBenefits, cls.Intent)
	assert.Equal(t, "fallback", cls.Source)
	assert.Equal(t, "सभी लाभ बताइए", fb.last.Utterance)
	assert.Equal(t, StageSchemesPresented, fb.last.Stage)
	assert.Equal(t, []string{"PM Yojana"}, fb.last.SchemeNames)
	assert.Equal(t, FallbackIntents, fb.last.Intents)
}

func TestClassifyMergesFactsIntoCopy(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: IntentProvideInfo, Income: intPtr(20000)}}
	c := newTestClassifier(t, fb)

	state := NewState()
	state.Stage = StageCollectingInfo
	state.UserInfo.Age = intPtr(30)

	cls := c.Classify(context.Background(), "मेरी आय 20000 है", state)
	require.Equal(t, IntentProvideInfo, cls.Intent)
	require.NotNil(t, cls.Facts.Age)
	require.NotNil(t, cls.Facts.Income)
	assert.Equal(t, 30, *cls.Facts.Age)
	assert.Equal(t, 20000, *cls.Facts.Income)
	assert.Nil(t, cls.Age)
	assert.Nil(t, state.UserInfo.Income, "stored facts must not be mutated")

	*cls.Facts.Age = 99
	assert.Equal(t, 30, *state.UserInfo.Age, "facts must not alias stored facts")
}

func TestClassifyDropsNegativeValues(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: IntentProvideInfo, Age: intPtr(-4), Income: intPtr(1000)}}
	c := newTestClassifier(t, fb)

	cls := c.Classify(context.Background(), "उम्र -4", NewState())
	assert.Nil(t, cls.Facts.Age)
	require.NotNil(t, cls.Facts.Income)
	assert.Equal(t, 1000, *cls.Facts.Income)
}

func TestClassifySchemeMatchForcesSelect(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: IntentAskAllBenefits, SchemeName: " PM Yojana "}}
	c := newTestClassifier(t, fb)

	state := NewState()
	state.Stage = StageSchemesPresented
	state.EligibleSchemes = []catalog.Scheme{pmYojana}

	cls := c.Classify(context.Background(), "पीएम योजना", state)
	assert.Equal(t, IntentSelectScheme, cls.Intent)
	require.NotNil(t, cls.Selected)
	assert.Equal(t, pmYojana, *cls.Selected)
	assert.Equal(t, "PM Yojana", cls.MatchedSchemeName)
}

func TestClassifySchemeMatchOverridesOffListLabel(t *testing.T) {
	for _, label := range []Intent{"select", "scheme_selection", ""} {
		t.Run(string(label), func(t *testing.T) {
			fb := &stubFallback{result: FallbackResult{Intent: label, SchemeName: "PM Yojana"}}
			c := newTestClassifier(t, fb)

			state := NewState()
			state.Stage = StageSchemesPresented
			state.EligibleSchemes = []catalog.Scheme{pmYojana}

			cls := c.Classify(context.Background(), "पीएम योजना वाली", state)
			assert.Equal(t, IntentSelectScheme, cls.Intent)
			assert.Equal(t, "fallback", cls.Source)
			require.NotNil(t, cls.Selected)
			assert.Equal(t, pmYojana.Name, cls.Selected.Name)
		})
	}
}

func TestClassifyOffListLabelWithoutMatchDegrades(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: "select", SchemeName: "Unknown Yojana"}}
	c := newTestClassifier(t, fb)

	state := NewState()
	state.Stage = StageSchemesPresented
	state.EligibleSchemes = []catalog.Scheme{pmYojana}

	cls := c.Classify(context.Background(), "कोई और योजना", state)
	assert.Equal(t, IntentIrrelevant, cls.Intent)
	assert.Equal(t, "degraded", cls.Source)
	assert.Nil(t, cls.Selected)
}

func TestClassifyUnresolvedSchemeName(t *testing.T) {
	fb := &stubFallback{result: FallbackResult{Intent: IntentSelectScheme, SchemeName: "Unknown Yojana"}}
	c := newTestClassifier(t, fb)

	state := NewState()
	state.Stage = StageSchemesPresented
	state.EligibleSchemes = []catalog.Scheme{pmYojana}

	cls := c.Classify(context.Background(), "कोई और योजना", state)
	assert.Equal(t, IntentSelectScheme, cls.Intent)
	assert.Nil(t, cls.Selected)
}

func TestClassifyDegrades(t *testing.T) {
	tests := []struct {
		name      string
		fallback  Fallback
		utterance string
		want      Intent
	}{
		{"error without digits", &stubFallback{err: errors.New("boom")}, "कुछ भी", IntentIrrelevant},
		{"error with digits", &stubFallback{err: errors.New("boom")}, "मैं 45 साल का हूँ", IntentProvideInfo},
		{"devanagari digits", &stubFallback{err: errors.New("boom")}, "आय ३०००० है", IntentProvideInfo},
		{"timeout", &stubFallback{delay: time.Second, result: FallbackResult{Intent: IntentConfirmApply}}, "हाँ", IntentIrrelevant},
		{"unknown intent", &stubFallback{result: FallbackResult{Intent: "apply_loan"}}, "लोन 5000", IntentProvideInfo},
		{"rule intent from fallback", &stubFallback{result: FallbackResult{Intent: IntentNullInput}}, "कुछ", IntentIrrelevant},
		{"no fallback", nil, "हाँ", IntentIrrelevant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fb Fallback
			if tt.fallback != nil {
				fb = tt.fallback
			}
			c := newTestClassifier(t, fb)
			cls := c.Classify(context.Background(), tt.utterance, NewState())
			assert.Equal(t, tt.want, cls.Intent)
			assert.Equal(t, "degraded", cls.Source)
		})
	}
}

func TestCallFallbackErrors(t *testing.T) {
	c := newTestClassifier(t, &stubFallback{delay: time.Second})
	_, err := c.callFallback(context.Background(), FallbackRequest{})
	assert.ErrorIs(t, err, ErrFallbackTimeout)

	c = newTestClassifier(t, &stubFallback{result: FallbackResult{Intent: "bogus"}})
	_, err = c.callFallback(context.Background(), FallbackRequest{})
	assert.ErrorIs(t, err, ErrFallbackMalformed)

	c = newTestClassifier(t, nil)
	_, err = c.callFallback(context.Background(), FallbackRequest{})
	assert.ErrorIs(t, err, ErrNoFallback)
}
