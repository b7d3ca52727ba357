// Package sqlite provides a store.Medium backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/caderno-api/internal/store"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Medium implements store.Medium using SQLite.
type Medium struct {
	db    *sql.DB
	quota int64
}

var _ store.Medium = (*Medium)(nil)

// Open opens or creates a SQLite database at the given path. A quota of 0
// means unlimited.
func Open(dbPath string, quota int64) (*Medium, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single writer keeps the quota check and the write in one serial step
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Medium{db: db, quota: quota}, nil
}

// Close releases the database handle.
func (m *Medium) Close() error {
	return m.db.Close()
}

// GetItem implements store.Medium.
func (m *Medium) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := m.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, MapError("get", err)
	}
	return value, true, nil
}

// SetItem implements store.Medium.
func (m *Medium) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return store.NewStoreError("entry", "set", "empty key", store.ErrInvalidKey)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return MapError("set", err)
	}
	defer func() { _ = tx.Rollback() }()

	if m.quota > 0 {
		var used, replaced int64
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(CAST(value AS BLOB))), 0) FROM kv_entries`,
		).Scan(&used)
		if err != nil {
			return MapError("set", err)
		}
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(CAST(value AS BLOB))), 0) FROM kv_entries WHERE key = ?`,
			key,
		).Scan(&replaced)
		if err != nil {
			return MapError("set", err)
		}
		if err := store.CheckQuota(m.quota, used, replaced, store.EntrySize(key, value)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return MapError("set", err)
	}
	if err := tx.Commit(); err != nil {
		return MapError("set", err)
	}
	return nil
}

// RemoveItem implements store.Medium.
func (m *Medium) RemoveItem(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return MapError("remove", err)
	}
	return nil
}

// Clear implements store.Medium.
func (m *Medium) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM kv_entries`); err != nil {
		return MapError("clear", err)
	}
	return nil
}

// Keys implements store.Medium.
func (m *Medium) Keys(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT key FROM kv_entries`)
	if err != nil {
		return nil, MapError("keys", err)
	}
	defer rows.Close() //nolint:errcheck

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, MapError("keys", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError("keys", err)
	}
	return keys, nil
}

// MapError converts SQLite errors into store errors. A full database becomes
// ErrQuotaExceeded; everything else is reported as ErrUnavailable.
func MapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqlite3.SQLITE_FULL {
		return store.NewStoreError("entry", operation, "database full", store.ErrQuotaExceeded)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return store.NewStoreError("entry", operation, "context done", err)
	}
	return store.NewStoreError("entry", operation, err.Error(), store.ErrUnavailable)
}
