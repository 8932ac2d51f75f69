package assistant

import (
	"context"
	"testing"

	"github.com/lukasbauer/sahayak/internal/costs"
	"github.com/lukasbauer/sahayak/internal/dialogue"
	"github.com/lukasbauer/sahayak/internal/eventlog"
	"github.com/lukasbauer/sahayak/internal/stt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscriber struct {
	out  stt.Transcript
	lang string
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, language string) stt.Transcript {
	s.lang = language
	return s.out
}

type stubSynthesizer struct {
	audio []byte
	text  string
}

func (s *stubSynthesizer) Synthesize(_ context.Context, text, _ string) []byte {
	s.text = text
	return s.audio
}

func withVoice(f fixture, tr stt.Transcriber, syn *stubSynthesizer) fixture {
	f.svc.transcriber = tr
	if syn != nil {
		f.svc.synthesizer = syn
	}
	f.svc.pricing = costs.Pricing{STTCentsPerMinute: 1, TTSCentsPerThousandChars: 10}
	return f
}

func TestAdvanceVoice(t *testing.T) {
	tr := &stubTranscriber{out: stt.Transcript{Text: " नमस्ते ", Seconds: 30}}
	syn := &stubSynthesizer{audio: []byte("mp3")}
	f := withVoice(newFixture(t, nil, dialogue.EngineOptions{}), tr, syn)

	got, err := f.svc.AdvanceVoice(context.Background(), "v", []byte("wav"))
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते", got.Transcript)
	assert.Equal(t, dialogue.IntentGreeting, got.Intent)
	assert.Equal(t, dialogue.ReplyGreeting, syn.text)
	assert.Equal(t, []byte("mp3"), got.Audio)
	assert.Equal(t, "hi", tr.lang)
	assert.InDelta(t, 0.5, got.Costs.STTCents, 1e-9)
	assert.Greater(t, got.Costs.TTSCents, 0.0)
}

func TestAdvanceVoice_TranscriptionFailureIsNullInput(t *testing.T) {
	for _, out := range []stt.Transcript{{Text: stt.ErrorMarker}, {Text: "  "}} {
		f := withVoice(newFixture(t, nil, dialogue.EngineOptions{}), &stubTranscriber{out: out}, nil)
		got, err := f.svc.AdvanceVoice(context.Background(), "v", []byte("wav"))
		require.NoError(t, err)
		assert.Equal(t, NullPlaceholder, got.Transcript)
		assert.Equal(t, dialogue.IntentNullInput, got.Intent)
		assert.Equal(t, dialogue.ReplyNotUnderstood, got.Text)
		assert.Nil(t, got.Audio)
		assert.Equal(t, out.Failed(), f.events.has(eventlog.EventSTTFailed))
	}
}

func TestAdvanceVoice_SynthesisFailureIsNotFatal(t *testing.T) {
	syn := &stubSynthesizer{}
	f := withVoice(newFixture(t, nil, dialogue.EngineOptions{}), &stubTranscriber{out: stt.Transcript{Text: "नमस्ते"}}, syn)

	got, err := f.svc.AdvanceVoice(context.Background(), "v", []byte("wav"))
	require.NoError(t, err)
	assert.Nil(t, got.Audio)
	assert.Equal(t, dialogue.ReplyGreeting, got.Text)
	assert.Zero(t, got.Costs.TTSCents)
	assert.True(t, f.events.has(eventlog.EventTTSFailed))
}

func TestAdvanceVoice_StoreFailureSpeaksTechnicalError(t *testing.T) {
	syn := &stubSynthesizer{audio: []byte("mp3")}
	f := withVoice(newFixture(t, nil, dialogue.EngineOptions{}), &stubTranscriber{out: stt.Transcript{Text: "नमस्ते"}}, syn)
	f.store.failSave = true

	got, err := f.svc.AdvanceVoice(context.Background(), "v", []byte("wav"))
	require.Error(t, err)
	assert.Equal(t, dialogue.ReplyTechnicalError, got.Text)
	assert.Equal(t, dialogue.ReplyTechnicalError, syn.text)
	assert.Equal(t, []byte("mp3"), got.Audio)
}

func TestAdvanceVoice_NotConfigured(t *testing.T) {
	f := newFixture(t, nil, dialogue.EngineOptions{})
	_, err := f.svc.AdvanceVoice(context.Background(), "v", []byte("wav"))
	assert.ErrorIs(t, err, ErrVoiceUnavailable)
}
