// Package main implements the entry point for the Caderno API server, which
// stores notebook data in a quota-bounded key-value store and continues text
// through the Gemini API.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/phrazzld/caderno-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("caderno-api: %v", err)
	}
}

// run loads configuration, builds the application and serves HTTP until an
// interrupt or termination signal arrives.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

// loadAppConfig loads the application configuration from the config file and
// environment variables.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"storage_backend", cfg.Storage.Backend,
		"llm_transport", cfg.LLM.Transport)

	if cfg.LLM.GeminiAPIKey != "" {
		slog.Debug("LLM configuration", "api_key_present", true)
	}

	return cfg, nil
}
