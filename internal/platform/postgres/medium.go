package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/phrazzld/caderno-api/internal/store"
)

// Medium implements store.Medium on a kv_entries table.
type Medium struct {
	db     *sql.DB
	quota  int64
	logger *slog.Logger
}

var _ store.Medium = (*Medium)(nil)

// Open connects to the database at url, configures the pool, verifies the
// connection and applies migrations. A quota of 0 means unlimited.
func Open(ctx context.Context, url string, quota int64, logger *slog.Logger) (*Medium, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "database connection established", "quota_bytes", quota)
	return New(db, quota, logger), nil
}

// New wraps an already migrated database handle.
func New(db *sql.DB, quota int64, logger *slog.Logger) *Medium {
	return &Medium{db: db, quota: quota, logger: logger.With("component", "postgres_medium")}
}

// Close releases the underlying pool.
func (m *Medium) Close() error {
	return m.db.Close()
}

// GetItem implements store.Medium.
func (m *Medium) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, MapError(err)
	}
	return value, true, nil
}

// SetItem implements store.Medium. The quota check and the upsert run in one
// transaction holding an exclusive table lock.
func (m *Medium) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return store.NewStoreError("entry", "set", "empty key", store.ErrInvalidKey)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return MapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if m.quota > 0 {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE kv_entries IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return MapError(err)
		}

		var used, replaced int64
		err := tx.QueryRowContext(ctx, `
			SELECT
				COALESCE(SUM(octet_length(key) + octet_length(value)), 0),
				COALESCE(SUM(octet_length(key) + octet_length(value)) FILTER (WHERE key = $1), 0)
			FROM kv_entries`, key).Scan(&used, &replaced)
		if err != nil {
			return MapError(err)
		}
		if err := store.CheckQuota(m.quota, used, replaced, store.EntrySize(key, value)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value)
	if err != nil {
		return MapError(err)
	}
	return MapError(tx.Commit())
}

// RemoveItem implements store.Medium.
func (m *Medium) RemoveItem(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return MapError(err)
}

// Clear implements store.Medium.
func (m *Medium) Clear(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM kv_entries`)
	return MapError(err)
}

// Keys implements store.Medium.
func (m *Medium) Keys(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT key FROM kv_entries`)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			m.logger.ErrorContext(ctx, "failed to close rows", "error", cerr)
		}
	}()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, MapError(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return keys, nil
}
