package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string // json or console
	Environment   string
	SentryDSN     string

	// Scheme catalog. Empty means the built-in catalog.
	SchemesPath string

	// Session store
	SessionBackend string // memory, redis or postgres
	SessionTTL     time.Duration
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Fallback classifier
	LLMProvider       string // openai, gemini or none
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	GeminiAPIKey      string
	GeminiModel       string
	ClassifierTimeout time.Duration

	// Speech
	STTProvider      string // whisper or deepgram
	WhisperAPIKey    string
	WhisperBaseURL   string
	WhisperModel     string
	DeepgramAPIKey   string
	DeepgramModel    string
	ElevenLabsAPIKey string
	TTSVoiceID       string
	TTSModelID       string
	TTSStability     float64 // -1 means provider default
	TTSSimilarity    float64 // -1 means provider default
	LanguageHint     string

	// JWT session tokens
	JWTSecret string
	JWTExpiry time.Duration

	DiscordWebhookURL string

	// Dialogue options
	ResetOnComplete    bool
	NoteContradictions bool
}

// LoadConfigFromEnv reads the configuration from the environment. A .env
// file in the working directory is loaded first; it never overrides
// variables that are already set.
func LoadConfigFromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
		Environment:   getenv("ENVIRONMENT", "development"),
		SentryDSN:     getenv("SENTRY_DSN", ""),

		SchemesPath: getenv("SCHEMES_PATH", ""),

		SessionBackend: strings.ToLower(getenv("SESSION_BACKEND", "memory")),
		SessionTTL:     getenvDuration("SESSION_TTL", 0),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		RedisDB:        getenvIntClamped("REDIS_DB", 0, 0, 15),

		LLMProvider:       strings.ToLower(getenv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:      getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getenv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getenv("OPENAI_MODEL", ""),
		GeminiAPIKey:      getenv("GEMINI_API_KEY", ""),
		GeminiModel:       getenv("GEMINI_MODEL", ""),
		ClassifierTimeout: getenvDuration("CLASSIFIER_TIMEOUT", 8*time.Second),

		STTProvider:      strings.ToLower(getenv("STT_PROVIDER", "whisper")),
		WhisperAPIKey:    getenv("WHISPER_API_KEY", ""),
		WhisperBaseURL:   getenv("WHISPER_BASE_URL", ""),
		WhisperModel:     getenv("WHISPER_MODEL", ""),
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:    getenv("DEEPGRAM_MODEL", ""),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),
		TTSVoiceID:       getenv("TTS_VOICE_ID", ""),
		TTSModelID:       getenv("TTS_MODEL_ID", ""),
		TTSStability:     getenvFloatClamped("TTS_STABILITY", -1, -1, 1),
		TTSSimilarity:    getenvFloatClamped("TTS_SIMILARITY", -1, -1, 1),
		LanguageHint:     getenv("LANGUAGE_HINT", "hi"),

		JWTSecret: os.Getenv("JWT_SECRET"), // empty disables session tokens
		JWTExpiry: getenvDuration("JWT_EXPIRY", 24*time.Hour),

		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		ResetOnComplete:    getenvBool("RESET_ON_COMPLETE", false),
		NoteContradictions: getenvBool("NOTE_CONTRADICTIONS", false),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntClamped(k string, def, min, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getenvFloatClamped(k string, def, min, max float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func getenvBool(k string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return v
}

// getenvDuration accepts Go durations ("90s") and bare seconds ("90").
func getenvDuration(k string, def time.Duration) time.Duration {
	s := strings.TrimSpace(os.Getenv(k))
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
