package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/nowdeck/nowdeck/internal/artwork"
	"github.com/nowdeck/nowdeck/internal/config"
	"github.com/nowdeck/nowdeck/internal/domain"
	"github.com/nowdeck/nowdeck/internal/server"
	"github.com/nowdeck/nowdeck/internal/session"
	"github.com/nowdeck/nowdeck/internal/tracker"
)

// AppOptions is the full dependency graph, separated from main so tests can
// validate it with fx.ValidateApp.
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		newConfig,
		newTracker,
		newArtwork,
		session.NewManager,
		server.New,
	),
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(
		// Logger configuration
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),

		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Stop the application gracefully
	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func newConfig(logger *zap.Logger) domain.Config {
	return config.NewAppConfig(logger)
}

func newTracker(logger *zap.Logger, cfg domain.Config) domain.Tracker {
	return tracker.NewStore(logger, cfg.ChangeLogCapacity())
}

func newArtwork(logger *zap.Logger, cfg domain.Config, tr domain.Tracker) domain.ArtworkSource {
	return artwork.NewFetcher(logger, tr, cfg.ArtworkCacheSize())
}

// registerHooks sets up application lifecycle hooks. A missing session bus is
// not fatal: the HTTP API keeps serving "no media playing" until a bus shows
// up on the next daemon restart.
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, mgr *session.Manager, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := mgr.Start(ctx); err != nil {
				logger.Warn("media session monitoring unavailable", zap.Error(err))
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}
			logger.Info("Nowdeck Daemon Started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("http shutdown failed", zap.Error(err))
			}
			if err := mgr.Stop(ctx); err != nil {
				logger.Warn("session teardown failed", zap.Error(err))
			}
			return nil
		},
	})
}
