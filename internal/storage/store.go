package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/phrazzld/caderno-api/internal/store"
)

// Well-known keys.
const (
	// VersionKey holds the schema version stamp.
	VersionKey = "version"

	// NotebooksKey holds the notebook collection, a JSON object keyed by notebook id.
	NotebooksKey = "cadernos"

	// ErrorLogsKey holds the persisted error log. It is the first thing evicted.
	ErrorLogsKey = "error_logs"

	// CurrentVersion is the schema version written at construction.
	CurrentVersion = "2.0"

	// DefaultRetainedNotebooks is how many notebooks survive an eviction pass.
	DefaultRetainedNotebooks = 10

	probeKey = "__storage_test__"
)

// Store is a best-effort key-value store over a store.Medium.
type Store struct {
	medium    store.Medium
	logger    *slog.Logger
	available bool
	retain    int
}

// Option configures a Store.
type Option func(*Store)

// WithRetainedNotebooks sets how many notebooks survive eviction.
func WithRetainedNotebooks(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retain = n
		}
	}
}

// New creates a Store over medium. It probes the medium with a throwaway
// write and delete, caches the result, and stamps the schema version when the
// stored one differs from CurrentVersion.
func New(ctx context.Context, medium store.Medium, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		medium: medium,
		logger: logger.With("component", "storage"),
		retain: DefaultRetainedNotebooks,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.available = s.probe(ctx)
	if s.available {
		s.stampVersion(ctx)
	}
	return s
}

func (s *Store) probe(ctx context.Context) bool {
	if s.medium == nil {
		s.logger.ErrorContext(ctx, "storage medium is not configured")
		return false
	}
	if err := s.medium.SetItem(ctx, probeKey, probeKey); err != nil {
		s.logger.ErrorContext(ctx, "storage medium is not available", "error", err)
		return false
	}
	if err := s.medium.RemoveItem(ctx, probeKey); err != nil {
		s.logger.ErrorContext(ctx, "storage medium is not available", "error", err)
		return false
	}
	return true
}

func (s *Store) stampVersion(ctx context.Context) {
	current, _, err := s.medium.GetItem(ctx, VersionKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read storage version", "error", err)
	}
	if current == CurrentVersion {
		return
	}
	s.logger.InfoContext(ctx, "migrating storage version",
		"from", current,
		"to", CurrentVersion)
	s.Set(ctx, VersionKey, CurrentVersion)
}

// IsAvailable reports the cached result of the construction-time probe.
func (s *Store) IsAvailable() bool {
	return s.available
}

// Get returns the decoded value stored under key, or def when the key is
// absent, the store is unavailable or the read fails. A stored value that is
// not JSON is returned as its raw string.
func (s *Store) Get(ctx context.Context, key string, def any) any {
	raw, ok := s.GetString(ctx, key)
	if !ok {
		return def
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// GetString returns the raw stored text for key without decoding it.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	if !s.available {
		s.logger.WarnContext(ctx, "storage not available, returning default value", "key", key)
		return "", false
	}
	raw, ok, err := s.medium.GetItem(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get item", "key", key, "error", err)
		return "", false
	}
	return raw, ok
}

// Lookup decodes the value stored under key into a T. It returns def when the
// key is absent, unreadable or not decodable as a T. A T of string receives
// the raw text when it is not a JSON string.
func Lookup[T any](ctx context.Context, s *Store, key string, def T) T {
	raw, ok := s.GetString(ctx, key)
	if !ok {
		return def
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		if str, isString := any(&out).(*string); isString {
			*str = raw
			return out
		}
		s.logger.WarnContext(ctx, "stored value has unexpected shape", "key", key, "error", err)
		return def
	}
	return out
}

// Set stores value under key and reports whether the write succeeded. Strings
// are stored unchanged, json.RawMessage is stored compacted and anything else
// is JSON encoded. A write refused for lack of space triggers one eviction pass
// and still reports false.
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	if !s.available {
		s.logger.WarnContext(ctx, "storage not available", "key", key)
		return false
	}

	serialized, err := serialize(value)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to serialize item", "key", key, "error", err)
		return false
	}

	if err := s.medium.SetItem(ctx, key, serialized); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			s.logger.ErrorContext(ctx, "storage quota exceeded", "key", key, "error", err)
			s.evict(ctx)
		} else {
			s.logger.ErrorContext(ctx, "failed to set item", "key", key, "error", err)
		}
		return false
	}

	s.logger.DebugContext(ctx, "stored item", "key", key)
	return true
}

func serialize(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// Remove deletes key and reports whether the medium accepted the removal.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if !s.available {
		return false
	}
	if err := s.medium.RemoveItem(ctx, key); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove item", "key", key, "error", err)
		return false
	}
	s.logger.DebugContext(ctx, "removed item", "key", key)
	return true
}

// Clear removes every key.
func (s *Store) Clear(ctx context.Context) bool {
	if !s.available {
		return false
	}
	if err := s.medium.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear storage", "error", err)
		return false
	}
	s.logger.InfoContext(ctx, "storage cleared")
	return true
}

// Keys returns every stored key in sorted order, or nil when unavailable.
func (s *Store) Keys(ctx context.Context) []string {
	if !s.available {
		return nil
	}
	keys, err := s.medium.Keys(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get keys", "error", err)
		return nil
	}
	sort.Strings(keys)
	return keys
}

// Size returns the total number of bytes used by all keys and values.
func (s *Store) Size(ctx context.Context) int64 {
	if !s.available {
		return 0
	}
	keys, err := s.medium.Keys(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to calculate size", "error", err)
		return 0
	}
	var total int64
	for _, k := range keys {
		v, ok, err := s.medium.GetItem(ctx, k)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to calculate size", "key", k, "error", err)
			return 0
		}
		if ok {
			total += store.EntrySize(k, v)
		}
	}
	return total
}
