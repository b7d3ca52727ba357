package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/phrazzld/caderno-api/internal/platform/backend"
	"github.com/phrazzld/caderno-api/internal/platform/gemini"
	"github.com/phrazzld/caderno-api/internal/platform/logger"
	"github.com/phrazzld/caderno-api/internal/storage"
)

// application holds the shared dependencies and releases them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	store     *storage.Store
	generator *gemini.Client

	closer io.Closer
}

// newApplication opens the configured storage medium and builds the store
// and the generation client on top of it.
func newApplication(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	medium, closer, err := backend.Open(ctx, cfg.Storage, appLogger)
	if err != nil {
		return nil, err
	}

	if cfg.Server.PersistErrorLogs {
		appLogger = logger.PersistErrors(appLogger, medium)
	}

	app := &application{
		config: cfg,
		logger: appLogger,
		closer: closer,
	}

	app.store = storage.New(ctx, medium, appLogger,
		storage.WithRetainedNotebooks(cfg.Storage.RetainedNotebooks))
	if !app.store.IsAvailable() {
		appLogger.WarnContext(ctx, "storage is not available, data will not be persisted",
			"backend", cfg.Storage.Backend)
	}

	app.generator, err = gemini.NewFromConfig(cfg.LLM, app.store, appLogger, &http.Client{})
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}

	app.seedCredential(ctx)
	return app, nil
}

// seedCredential stores the configured API key when no key is stored yet.
func (app *application) seedCredential(ctx context.Context) {
	seeded, err := app.generator.SeedCredential(ctx, app.config.LLM.GeminiAPIKey)
	if err != nil {
		app.logger.WarnContext(ctx, "failed to seed API key from configuration", "error", err)
		return
	}
	if seeded {
		app.logger.InfoContext(ctx, "API key seeded from configuration")
	}
}

// cleanup releases the storage medium.
func (app *application) cleanup() {
	if app.closer == nil {
		return
	}
	if err := app.closer.Close(); err != nil {
		app.logger.Error("failed to close storage", "error", err)
	}
}
