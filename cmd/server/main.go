package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lukasbauer/sahayak/internal/app"
	"github.com/lukasbauer/sahayak/internal/httpapi"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// drainTimeout bounds how long shutdown waits for in-flight turns.
const drainTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sahayak: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := app.LoadConfigFromEnv()

	logger, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Initialize Sentry for error monitoring
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2, // 20% of requests for performance monitoring
			Environment:      cfg.Environment,
		})
		if err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		} else {
			logger.Info("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		if cfg.SentryDSN != "" {
			sentry.CaptureException(err)
		}
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	turns := httpapi.NewTurnRegistry()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Router(turns),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		// Stop accepting turns, let running ones finish, then close.
		turns.StartDraining()
		logger.Info("draining", zap.Int64("active_turns", turns.ActiveCount()))
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := turns.Wait(drainCtx); err != nil {
			logger.Warn("drain timed out", zap.Int64("active_turns", turns.ActiveCount()))
		}
		return srv.Shutdown(drainCtx)
	})

	return g.Wait()
}
