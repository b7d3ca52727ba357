// Package backend opens the store.Medium selected by configuration.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/caderno-api/internal/config"
	"github.com/phrazzld/caderno-api/internal/platform/jsonfile"
	"github.com/phrazzld/caderno-api/internal/platform/memory"
	"github.com/phrazzld/caderno-api/internal/platform/postgres"
	"github.com/phrazzld/caderno-api/internal/platform/sqlite"
	"github.com/phrazzld/caderno-api/internal/store"
)

// Backend names accepted in StorageConfig.Backend.
const (
	Memory   = "memory"
	JSONFile = "jsonfile"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Default file locations for the file-based backends.
const (
	DefaultJSONPath   = "data/caderno.json"
	DefaultSQLitePath = "data/caderno.db"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the configured medium and a Closer releasing its resources.
// The Closer is never nil when err is nil.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (store.Medium, io.Closer, error) {
	switch cfg.Backend {
	case Memory, "":
		logger.InfoContext(ctx, "using in-memory storage", "quota_bytes", cfg.QuotaBytes)
		return memory.New(cfg.QuotaBytes), nopCloser{}, nil

	case JSONFile:
		path := pathOrDefault(cfg.Path, DefaultJSONPath)
		logger.InfoContext(ctx, "using JSON file storage", "path", path, "quota_bytes", cfg.QuotaBytes)
		return jsonfile.New(path, cfg.QuotaBytes), nopCloser{}, nil

	case SQLite:
		path := pathOrDefault(cfg.Path, DefaultSQLitePath)
		m, err := sqlite.Open(path, cfg.QuotaBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		logger.InfoContext(ctx, "using SQLite storage", "path", path, "quota_bytes", cfg.QuotaBytes)
		return m, m, nil

	case Postgres:
		m, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.QuotaBytes, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		logger.InfoContext(ctx, "using PostgreSQL storage", "quota_bytes", cfg.QuotaBytes)
		return m, m, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func pathOrDefault(path, def string) string {
	if path == "" {
		return def
	}
	return path
}
