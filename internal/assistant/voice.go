package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lukasbauer/sahayak/internal/costs"
	"github.com/lukasbauer/sahayak/internal/eventlog"
	"github.com/lukasbauer/sahayak/internal/metrics"
	"github.com/lukasbauer/sahayak/internal/tts"
)

// NullPlaceholder replaces an empty or failed transcription so that the turn
// is classified as null input.
const NullPlaceholder = "..."

// ErrVoiceUnavailable is returned when no transcriber is configured.
var ErrVoiceUnavailable = errors.New("voice turns are not configured")

// VoiceReply is the outcome of a spoken turn.
type VoiceReply struct {
	Transcript string
	Reply
	// Audio is nil when synthesis failed or is not configured; the caller
	// skips playback.
	Audio []byte
}

// AdvanceVoice transcribes audio, runs the turn and synthesizes the reply.
// Transcription failures become null input. A store failure still yields a
// spoken technical-error reply alongside the error.
func (s *Service) AdvanceVoice(ctx context.Context, id string, audio []byte) (VoiceReply, error) {
	if s.transcriber == nil {
		return VoiceReply{}, ErrVoiceUnavailable
	}
	start := time.Now()
	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()
	defer func() { metrics.TurnDuration.WithLabelValues("voice").Observe(time.Since(start).Seconds()) }()

	tr := s.transcriber.Transcribe(ctx, audio, s.language)
	text := strings.TrimSpace(tr.Text)
	if tr.Failed() {
		s.logEvent(id, eventlog.EventSTTFailed, nil)
		text = NullPlaceholder
	} else if text == "" {
		text = NullPlaceholder
	}

	reply, usage, err := s.advance(ctx, id, text)
	if err != nil && reply.Text == "" {
		return VoiceReply{Transcript: text}, err
	}

	out := VoiceReply{Transcript: text, Reply: reply}
	usageTotal := costs.TurnUsage{
		STTSeconds:      tr.Seconds,
		LLMInputTokens:  usage.PromptTokens,
		LLMOutputTokens: usage.CompletionTokens,
	}
	if s.synthesizer != nil {
		out.Audio = s.synthesizer.Synthesize(ctx, reply.Text, s.language)
		if out.Audio == nil {
			s.logEvent(id, eventlog.EventTTSFailed, nil)
		} else {
			usageTotal.TTSCharacters = len([]rune(tts.SpeechText(reply.Text)))
		}
	}
	out.Costs = s.pricing.Calculate(usageTotal)
	if out.Costs.STTCents > 0 {
		metrics.ProviderCostCents.WithLabelValues("stt").Add(out.Costs.STTCents)
	}
	if out.Costs.TTSCents > 0 {
		metrics.ProviderCostCents.WithLabelValues("tts").Add(out.Costs.TTSCents)
	}
	return out, err
}
