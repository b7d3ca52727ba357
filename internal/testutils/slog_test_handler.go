package testutils

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// LogEntry represents a simplified log record for testing
type LogEntry map[string]interface{}

// TestSlogHandler is a memory-backed slog.Handler for testing
type TestSlogHandler struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	attrs   []slog.Attr
}

// NewTestSlogHandler creates a new memory-backed slog handler
func NewTestSlogHandler() *TestSlogHandler {
	entries := make([]LogEntry, 0)
	return &TestSlogHandler{
		mu:      &sync.Mutex{},
		entries: &entries,
	}
}

// NewTestLogger returns a logger writing to a fresh TestSlogHandler.
func NewTestLogger() (*slog.Logger, *TestSlogHandler) {
	h := NewTestSlogHandler()
	return slog.New(h), h
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Enabled satisfies slog.Handler interface
func (h *TestSlogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// Handle satisfies slog.Handler interface
func (h *TestSlogHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := make(LogEntry)
	for _, attr := range h.attrs {
		entry[attr.Key] = attr.Value.Any()
	}
	entry["level"] = r.Level.String()
	entry["message"] = r.Message

	r.Attrs(func(attr slog.Attr) bool {
		entry[attr.Key] = attr.Value.Any()
		return true
	})

	*h.entries = append(*h.entries, entry)
	return nil
}

// WithAttrs satisfies slog.Handler interface. Derived handlers share the
// captured entries with their parent.
func (h *TestSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TestSlogHandler{mu: h.mu, entries: h.entries, attrs: merged}
}

// WithGroup satisfies slog.Handler interface
func (h *TestSlogHandler) WithGroup(name string) slog.Handler {
	return h
}

// Entries returns all captured log entries
func (h *TestSlogHandler) Entries() []LogEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	result := make([]LogEntry, len(*h.entries))
	copy(result, *h.entries)
	return result
}

// Find returns the captured entries with the given message.
func (h *TestSlogHandler) Find(message string) []LogEntry {
	var found []LogEntry
	for _, e := range h.Entries() {
		if e["message"] == message {
			found = append(found, e)
		}
	}
	return found
}

// Clear resets the captured log entries
func (h *TestSlogHandler) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	*h.entries = make([]LogEntry, 0)
}
