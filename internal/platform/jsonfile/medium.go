// Package jsonfile provides a store.Medium persisted as a single JSON document
// on disk. Cross-process access is serialized with flock on a sidecar lock file
// and every write replaces the document atomically.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/phrazzld/caderno-api/internal/store"
)

// document is the root JSON structure stored on disk.
type document struct {
	Entries map[string]string `json:"entries"`
}

// Medium implements store.Medium on top of a JSON file.
type Medium struct {
	path  string
	quota int64
	mu    sync.RWMutex
}

var _ store.Medium = (*Medium)(nil)

// New creates a Medium backed by the file at path. The file is created on the
// first write. A quota of 0 means unlimited.
func New(path string, quota int64) *Medium {
	return &Medium{path: path, quota: quota}
}

func (m *Medium) lockPath() string {
	return m.path + ".lock"
}

func (m *Medium) withSharedLock(fn func() error) error {
	return m.withFileLock(syscall.LOCK_SH, fn)
}

func (m *Medium) withExclusiveLock(fn func() error) error {
	return m.withFileLock(syscall.LOCK_EX, fn)
}

// withFileLock acquires a file lock, executes fn, then releases the lock.
func (m *Medium) withFileLock(lockType int, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return unavailable("lock", "create lock directory", err)
	}

	f, err := os.OpenFile(m.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return unavailable("lock", "open lock file", err)
	}
	defer f.Close() //nolint:errcheck

	if err := syscall.Flock(int(f.Fd()), lockType); err != nil {
		return unavailable("lock", "acquire file lock", err)
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN) //nolint:errcheck

	return fn()
}

// GetItem implements store.Medium.
func (m *Medium) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		value string
		found bool
	)
	err := m.withSharedLock(func() error {
		doc, err := m.load()
		if err != nil {
			return err
		}
		value, found = doc.Entries[key]
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// SetItem implements store.Medium.
func (m *Medium) SetItem(_ context.Context, key, value string) error {
	if key == "" {
		return store.NewStoreError("entry", "set", "empty key", store.ErrInvalidKey)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.withExclusiveLock(func() error {
		doc, err := m.load()
		if err != nil {
			return err
		}

		var replaced int64
		if old, ok := doc.Entries[key]; ok {
			replaced = store.EntrySize(key, old)
		}
		if err := store.CheckQuota(m.quota, usage(doc), replaced, store.EntrySize(key, value)); err != nil {
			return err
		}

		doc.Entries[key] = value
		return m.save(doc)
	})
}

// RemoveItem implements store.Medium.
func (m *Medium) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.withExclusiveLock(func() error {
		doc, err := m.load()
		if err != nil {
			return err
		}
		if _, ok := doc.Entries[key]; !ok {
			return nil
		}
		delete(doc.Entries, key)
		return m.save(doc)
	})
}

// Clear implements store.Medium.
func (m *Medium) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.withExclusiveLock(func() error {
		return m.save(document{Entries: map[string]string{}})
	})
}

// Keys implements store.Medium.
func (m *Medium) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	err := m.withSharedLock(func() error {
		doc, err := m.load()
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(doc.Entries))
		for k := range doc.Entries {
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func usage(doc document) int64 {
	var total int64
	for k, v := range doc.Entries {
		total += store.EntrySize(k, v)
	}
	return total
}

// load reads the document from disk.
// Returns an empty document if the file doesn't exist.
func (m *Medium) load() (document, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{Entries: make(map[string]string)}, nil
		}
		return document{}, unavailable("medium", "read file", err)
	}

	if len(data) == 0 {
		return document{Entries: make(map[string]string)}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, unavailable("medium", fmt.Sprintf("parse %s", m.path), err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}
	return doc, nil
}

// save writes the document to disk atomically.
func (m *Medium) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return store.NewStoreError("medium", "save", "encode document", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return mapWriteError(err)
	}

	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp) // best effort cleanup
		return mapWriteError(err)
	}
	return nil
}

// mapWriteError turns a full disk into ErrQuotaExceeded and anything else
// into ErrUnavailable.
func mapWriteError(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return store.NewStoreError("medium", "save", err.Error(), store.ErrQuotaExceeded)
	}
	return unavailable("medium", "write file", err)
}

func unavailable(entity, message string, err error) error {
	return store.NewStoreError(entity, "access", message, fmt.Errorf("%w: %v", store.ErrUnavailable, err))
}
