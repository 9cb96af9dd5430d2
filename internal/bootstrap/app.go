// Package bootstrap handles application initialization and lifecycle management
// for the milkmob service.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/milkmob/internal/api"
	"github.com/jonesrussell/north-cloud/milkmob/internal/config"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/scheduler"
	"github.com/jonesrussell/north-cloud/milkmob/internal/storage"
	"github.com/jonesrussell/north-cloud/milkmob/internal/telemetry"
)

// App is the assembled service.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	Telemetry  *telemetry.Provider
	DB         *sqlx.DB
	Redis      *redis.Client
	Components *ServiceComponents
	Scheduler  *scheduler.Scheduler
	Server     *api.Server
}

// Start loads configuration, builds the application and serves until ctx is
// cancelled.
func Start(ctx context.Context) error {
	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: Build components
	app, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", logger.Error(err))
		return err
	}
	defer app.Close()

	// Phase 3: Serve
	return app.Run(ctx)
}

// New builds every component from cfg. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: log, Telemetry: telemetry.NewProvider()}

	db, repo, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}
	app.DB = db

	counter, redisClient := SetupTagCounter(cfg, log)
	app.Redis = redisClient

	components, err := SetupServices(ctx, cfg, repo, counter, log, app.Telemetry)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Components = components

	uploads, err := storage.NewVideoStore(cfg.Uploads.Dir, cfg.Uploads.MaxBytes)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to set up upload storage: %w", err)
	}

	if cfg.Scheduler.Enabled {
		app.Scheduler = scheduler.New(scheduler.Config{Schedule: cfg.Scheduler.ReweightSchedule},
			repo, repo, components.Classifier, log, app.Telemetry)
	}

	app.Server = SetupHTTPServer(cfg, components.Service, uploads, db, redisClient, app.Telemetry, log)
	return app, nil
}

// Run starts the scheduler and HTTP server and blocks until ctx is cancelled
// or the server fails, then shuts both down.
func (a *App) Run(ctx context.Context) error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errCh := a.Server.StartAsync()

	var serveErr error
	select {
	case <-ctx.Done():
		a.Logger.Info("Shutdown signal received")
	case err, ok := <-errCh:
		if ok {
			a.Logger.Error("Server error", logger.Error(err))
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Service.ShutdownTimeout)
	defer cancel()

	if a.Scheduler != nil {
		a.Scheduler.Stop(shutdownCtx)
	}
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}

	a.Logger.Info("Server exited")
	return serveErr
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close redis", logger.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Failed to close database", logger.Error(err))
		}
	}
}
