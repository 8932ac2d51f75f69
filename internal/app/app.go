package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lukasbauer/sahayak/internal/assistant"
	"github.com/lukasbauer/sahayak/internal/catalog"
	"github.com/lukasbauer/sahayak/internal/costs"
	"github.com/lukasbauer/sahayak/internal/dialogue"
	"github.com/lukasbauer/sahayak/internal/eventlog"
	"github.com/lukasbauer/sahayak/internal/httpapi"
	"github.com/lukasbauer/sahayak/internal/llm"
	"github.com/lukasbauer/sahayak/internal/notifications"
	"github.com/lukasbauer/sahayak/internal/session"
	"github.com/lukasbauer/sahayak/internal/stt"
	"github.com/lukasbauer/sahayak/internal/tts"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	cfg       Config
	logger    *zap.Logger
	db        *pgxpool.Pool
	redis     *redis.Client
	catalog   *catalog.Catalog
	eventLog  *eventlog.Logger
	discord   *notifications.Discord
	assistant *assistant.Service
}

func New(ctx context.Context, cfg Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(connectCtx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		// Migrations are applied externally (psql -f migrations/*.sql).
	}

	a.discord = notifications.NewDiscord(cfg.DiscordWebhookURL, logger)
	a.eventLog = eventlog.New(a.db, logger)
	a.catalog = a.loadCatalog()

	store, err := a.sessionStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	fallback, err := a.fallback(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.assistant = assistant.New(assistant.Config{
		Store: store,
		Classifier: dialogue.NewClassifier(dialogue.ClassifierConfig{
			Fallback: fallback,
			Timeout:  cfg.ClassifierTimeout,
		}, logger.Named("classifier")),
		Engine: dialogue.NewEngine(a.catalog, dialogue.EngineOptions{
			ResetOnComplete:    cfg.ResetOnComplete,
			NoteContradictions: cfg.NoteContradictions,
		}),
		Transcriber: a.transcriber(),
		Synthesizer: a.synthesizer(),
		Events:      a.eventLog,
		Notifier:    a.discord,
		Pricing:     costs.DefaultPricing(),
		Language:    cfg.LanguageHint,
	}, logger.Named("assistant"))

	return a, nil
}

// loadCatalog never fails: an unreadable catalog leaves the assistant
// running with no schemes, and the operators are told.
func (a *App) loadCatalog() *catalog.Catalog {
	c, err := catalog.LoadOrEmpty(a.cfg.SchemesPath, a.logger)
	if err != nil {
		a.discord.NotifyCatalogUnavailable(a.cfg.SchemesPath, err)
	}
	return c
}

func (a *App) sessionStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.SessionBackend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		client, err := session.NewRedisClient(ctx, session.RedisConfig{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.redis = client
		return session.NewRedisStore(client, a.cfg.SessionTTL), nil
	case "postgres":
		if a.db == nil {
			return nil, errors.New("SESSION_BACKEND=postgres requires DATABASE_URL")
		}
		return session.NewPostgresStore(a.db), nil
	default:
		return nil, fmt.Errorf("unknown SESSION_BACKEND %q", a.cfg.SessionBackend)
	}
}

// fallback returns nil when no provider is configured; every utterance the
// rules do not claim then degrades.
func (a *App) fallback(ctx context.Context) (dialogue.Fallback, error) {
	switch a.cfg.LLMProvider {
	case "none", "":
		return nil, nil
	case "openai", "groq":
		if a.cfg.OpenAIAPIKey == "" {
			a.logger.Warn("OPENAI_API_KEY not set, fallback classifier disabled")
			return nil, nil
		}
		baseURL := a.cfg.OpenAIBaseURL
		if baseURL == "" && a.cfg.LLMProvider == "groq" {
			baseURL = llm.GroqBaseURL
		}
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  a.cfg.OpenAIAPIKey,
			BaseURL: baseURL,
			Model:   a.cfg.OpenAIModel,
		}), nil
	case "gemini":
		if a.cfg.GeminiAPIKey == "" {
			a.logger.Warn("GEMINI_API_KEY not set, fallback classifier disabled")
			return nil, nil
		}
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey: a.cfg.GeminiAPIKey,
			Model:  a.cfg.GeminiModel,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", a.cfg.LLMProvider)
	}
}

func (a *App) transcriber() stt.Transcriber {
	switch a.cfg.STTProvider {
	case "deepgram":
		if a.cfg.DeepgramAPIKey == "" {
			break
		}
		return stt.NewDeepgramClient(stt.DeepgramConfig{
			APIKey:    a.cfg.DeepgramAPIKey,
			Model:     a.cfg.DeepgramModel,
			Punctuate: true,
		}, a.logger.Named("stt"))
	default:
		if a.cfg.WhisperAPIKey == "" {
			break
		}
		return stt.NewWhisperClient(stt.WhisperConfig{
			APIKey:  a.cfg.WhisperAPIKey,
			BaseURL: a.cfg.WhisperBaseURL,
			Model:   a.cfg.WhisperModel,
		}, a.logger.Named("stt"))
	}
	a.logger.Info("no speech-to-text key configured, voice turns disabled", zap.String("provider", a.cfg.STTProvider))
	return nil
}

func (a *App) synthesizer() tts.Synthesizer {
	if a.cfg.ElevenLabsAPIKey == "" {
		a.logger.Info("ELEVENLABS_API_KEY not set, replies are text only")
		return nil
	}
	return tts.NewElevenLabsClient(tts.ElevenLabsConfig{
		APIKey:     a.cfg.ElevenLabsAPIKey,
		VoiceID:    a.cfg.TTSVoiceID,
		ModelID:    a.cfg.TTSModelID,
		Stability:  a.cfg.TTSStability,
		Similarity: a.cfg.TTSSimilarity,
	}, a.logger.Named("tts"))
}

// Assistant is the turn service, for in-process shells such as cmd/chat.
func (a *App) Assistant() *assistant.Service {
	return a.assistant
}

func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

func (a *App) Router(turns *httpapi.TurnRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		JWTSecret: a.cfg.JWTSecret,
		JWTExpiry: a.cfg.JWTExpiry,
	}
	return httpapi.NewRouter(routerCfg, a.logger.Named("http"), a.assistant, a.catalog, turns)
}

// Close flushes pending events and notifications and releases connections.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.eventLog.Wait(ctx); err != nil {
		a.logger.Warn("pending events dropped", zap.Error(err))
	}
	a.discord.Wait()

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}
