package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/phrazzld/caderno-api/internal/platform/backend"
	"github.com/phrazzld/caderno-api/internal/platform/gemini"
	"github.com/phrazzld/caderno-api/internal/platform/logger"
	"github.com/phrazzld/caderno-api/internal/storage"
	"github.com/spf13/cobra"
)

type runner struct {
	load ConfigLoader
	opts rootOptions
}

// session is the set of components one command invocation works with.
type session struct {
	config *config.Config
	logger *slog.Logger
	store  *storage.Store
	closer io.Closer
}

// open loads the configuration, applies flag overrides and opens the store.
// Logs go to the command's stderr at warn level, or debug with --verbose.
func (r *runner) open(cmd *cobra.Command) (*session, error) {
	cfg, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if r.opts.backend != "" {
		cfg.Storage.Backend = r.opts.backend
	}
	if r.opts.path != "" {
		cfg.Storage.Path = r.opts.path
	}

	logCfg := cfg.Server
	logCfg.LogLevel = "warn"
	if r.opts.verbose {
		logCfg.LogLevel = "debug"
	}
	log := logger.SetupWithWriter(logCfg, cmd.ErrOrStderr())

	ctx := cmd.Context()
	medium, closer, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	if cfg.Server.PersistErrorLogs {
		log = logger.PersistErrors(log, medium)
	}

	st := storage.New(ctx, medium, log, storage.WithRetainedNotebooks(cfg.Storage.RetainedNotebooks))
	s := &session{
		config: cfg,
		logger: log,
		store:  st,
		closer: closer,
	}
	if !s.store.IsAvailable() {
		s.close()
		return nil, fmt.Errorf("storage backend %q is not available", cfg.Storage.Backend)
	}
	return s, nil
}

// generator builds the Gemini client over the session store, seeding the
// configured API key when none is stored.
func (s *session) generator(cmd *cobra.Command) (*gemini.Client, error) {
	client, err := gemini.NewFromConfig(s.config.LLM, s.store, s.logger, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}
	if _, err := client.SeedCredential(cmd.Context(), s.config.LLM.GeminiAPIKey); err != nil {
		s.logger.WarnContext(cmd.Context(), "failed to seed API key from configuration", "error", err)
	}
	return client, nil
}

func (s *session) close() {
	if err := s.closer.Close(); err != nil {
		s.logger.Error("failed to close storage", "error", err)
	}
}
