// Package memory provides an in-process store.Medium with a byte capacity.
package memory

import (
	"context"
	"sync"

	"github.com/phrazzld/caderno-api/internal/store"
)

// Medium keeps entries in a map guarded by a mutex. A capacity of 0 means
// unlimited.
type Medium struct {
	mu       sync.RWMutex
	entries  map[string]string
	used     int64
	capacity int64
}

var _ store.Medium = (*Medium)(nil)

// New creates an empty Medium that refuses writes beyond capacity bytes.
func New(capacity int64) *Medium {
	return &Medium{
		entries:  make(map[string]string),
		capacity: capacity,
	}
}

// GetItem implements store.Medium.
func (m *Medium) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

// SetItem implements store.Medium.
func (m *Medium) SetItem(_ context.Context, key, value string) error {
	if key == "" {
		return store.NewStoreError("entry", "set", "empty key", store.ErrInvalidKey)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var replaced int64
	if old, ok := m.entries[key]; ok {
		replaced = store.EntrySize(key, old)
	}
	size := store.EntrySize(key, value)
	if err := store.CheckQuota(m.capacity, m.used, replaced, size); err != nil {
		return err
	}

	m.entries[key] = value
	m.used += size - replaced
	return nil
}

// RemoveItem implements store.Medium.
func (m *Medium) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.entries[key]; ok {
		m.used -= store.EntrySize(key, old)
		delete(m.entries, key)
	}
	return nil
}

// Clear implements store.Medium.
func (m *Medium) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]string)
	m.used = 0
	return nil
}

// Keys implements store.Medium.
func (m *Medium) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// Used returns the number of bytes currently accounted against the capacity.
func (m *Medium) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
