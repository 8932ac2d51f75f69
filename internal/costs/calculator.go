// Package costs estimates what a conversation turn costs in provider fees.
package costs

import (
	"math"
	"os"
	"strconv"
)

// Pricing holds provider rates in US cents. Defaults can be overridden via
// environment variables.
type Pricing struct {
	// STTCentsPerMinute is the transcription rate.
	// Default: Groq whisper-large-v3 $0.111/hour = 0.185 cents/min
	STTCentsPerMinute float64
	// LLMCentsPerThousandInputTokens defaults to GPT-4o-mini $0.15/1M.
	LLMCentsPerThousandInputTokens float64
	// LLMCentsPerThousandOutputTokens defaults to GPT-4o-mini $0.60/1M.
	LLMCentsPerThousandOutputTokens float64
	// TTSCentsPerThousandChars defaults to ElevenLabs Flash $0.18/1K chars.
	TTSCentsPerThousandChars float64
}

// DefaultPricing returns the built-in rates with environment overrides applied.
func DefaultPricing() Pricing {
	return Pricing{
		STTCentsPerMinute:               getEnvFloat("COST_STT_CENTS_PER_MIN", 0.185),
		LLMCentsPerThousandInputTokens:  getEnvFloat("COST_LLM_INPUT_CENTS_PER_1K", 0.015),
		LLMCentsPerThousandOutputTokens: getEnvFloat("COST_LLM_OUTPUT_CENTS_PER_1K", 0.06),
		TTSCentsPerThousandChars:        getEnvFloat("COST_TTS_CENTS_PER_1K_CHARS", 18.0),
	}
}

// TurnUsage contains the raw metrics of one turn used for cost calculation.
type TurnUsage struct {
	STTSeconds      float64 // Audio processed by STT
	LLMInputTokens  int     // Tokens sent to the fallback classifier
	LLMOutputTokens int     // Tokens received from the fallback classifier
	TTSCharacters   int     // Characters sent to TTS
}

// Add returns the sum of two usages.
func (u TurnUsage) Add(o TurnUsage) TurnUsage {
	return TurnUsage{
		STTSeconds:      u.STTSeconds + o.STTSeconds,
		LLMInputTokens:  u.LLMInputTokens + o.LLMInputTokens,
		LLMOutputTokens: u.LLMOutputTokens + o.LLMOutputTokens,
		TTSCharacters:   u.TTSCharacters + o.TTSCharacters,
	}
}

// TurnCosts contains the calculated costs in cents, rounded to 1/10000 cent.
type TurnCosts struct {
	STTCents   float64 `json:"stt_cents"`
	LLMCents   float64 `json:"llm_cents"`
	TTSCents   float64 `json:"tts_cents"`
	TotalCents float64 `json:"total_cents"`
}

// Calculate computes the costs for a turn based on usage metrics.
func (p Pricing) Calculate(u TurnUsage) TurnCosts {
	stt := (u.STTSeconds / 60.0) * p.STTCentsPerMinute

	// LLM costs: per 1K tokens
	llm := (float64(u.LLMInputTokens)/1000.0)*p.LLMCentsPerThousandInputTokens +
		(float64(u.LLMOutputTokens)/1000.0)*p.LLMCentsPerThousandOutputTokens

	// TTS costs: per 1K characters
	tts := (float64(u.TTSCharacters) / 1000.0) * p.TTSCentsPerThousandChars

	c := TurnCosts{
		STTCents: round4(stt),
		LLMCents: round4(llm),
		TTSCents: round4(tts),
	}
	c.TotalCents = round4(c.STTCents + c.LLMCents + c.TTSCents)
	return c
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultVal
}
