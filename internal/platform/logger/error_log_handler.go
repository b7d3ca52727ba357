package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/caderno-api/internal/redact"
	"github.com/phrazzld/caderno-api/internal/storage"
	"github.com/phrazzld/caderno-api/internal/store"
)

// MaxErrorLogs is the number of error records kept in the medium.
const MaxErrorLogs = 50

// ErrorLogRecord is one persisted error-level log record.
type ErrorLogRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// ErrorLogHandler is a slog.Handler that forwards every record to the wrapped
// handler and also appends error-level records to a store.Medium, keeping the
// most recent MaxErrorLogs. It writes to the medium directly and drops its own
// failures, so persisting a record can never produce another log record.
type ErrorLogHandler struct {
	handler slog.Handler
	sink    *errorSink
	attrs   []slog.Attr
	group   string
}

type errorSink struct {
	mu     sync.Mutex
	medium store.Medium
	key    string
	max    int
}

// NewErrorLogHandler wraps handler, persisting error records into medium.
func NewErrorLogHandler(handler slog.Handler, medium store.Medium) *ErrorLogHandler {
	return &ErrorLogHandler{
		handler: handler,
		sink: &errorSink{
			medium: medium,
			key:    storage.ErrorLogsKey,
			max:    MaxErrorLogs,
		},
	}
}

// PersistErrors returns a logger that behaves like l and additionally
// persists error records into medium. The result becomes the default logger.
func PersistErrors(l *slog.Logger, medium store.Medium) *slog.Logger {
	persisting := slog.New(NewErrorLogHandler(l.Handler(), medium))
	slog.SetDefault(persisting)
	return persisting
}

// Enabled implements the slog.Handler interface.
func (h *ErrorLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || h.handler.Enabled(ctx, level)
}

// WithAttrs implements the slog.Handler interface.
func (h *ErrorLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, h.qualify(a))
	}
	return &ErrorLogHandler{
		handler: h.handler.WithAttrs(attrs),
		sink:    h.sink,
		attrs:   merged,
		group:   h.group,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *ErrorLogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &ErrorLogHandler{
		handler: h.handler.WithGroup(name),
		sink:    h.sink,
		attrs:   h.attrs,
		group:   group,
	}
}

func (h *ErrorLogHandler) qualify(a slog.Attr) slog.Attr {
	if h.group == "" {
		return a
	}
	return slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
}

// Handle implements the slog.Handler interface.
func (h *ErrorLogHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.handler.Enabled(ctx, record.Level) {
		err = h.handler.Handle(ctx, record)
	}
	if record.Level >= slog.LevelError {
		h.sink.append(ctx, h.toRecord(record))
	}
	return err
}

func (h *ErrorLogHandler) toRecord(r slog.Record) ErrorLogRecord {
	rec := ErrorLogRecord{
		Timestamp: r.Time,
		Level:     r.Level.String(),
		Message:   redact.String(r.Message),
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	add := func(a slog.Attr) {
		if a.Key == "component" {
			rec.Component = a.Value.String()
			return
		}
		if rec.Data == nil {
			rec.Data = make(map[string]any)
		}
		rec.Data[a.Key] = attrValue(a.Value)
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.qualify(a))
		return true
	})
	return rec
}

// attrValue renders an attribute value into something JSON can encode,
// redacting strings and errors.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return redact.String(v.String())
	case slog.KindGroup:
		out := make(map[string]any)
		for _, a := range v.Group() {
			out[a.Key] = attrValue(a.Value)
		}
		return out
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return redact.Error(err)
		}
		if _, err := json.Marshal(v.Any()); err != nil {
			return redact.String(v.String())
		}
		return v.Any()
	default:
		return v.Any()
	}
}

func (s *errorSink) append(ctx context.Context, rec ErrorLogRecord) {
	if s.medium == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []ErrorLogRecord
	if raw, ok, err := s.medium.GetItem(ctx, s.key); err == nil && ok {
		// an unreadable log is replaced
		_ = json.Unmarshal([]byte(raw), &records)
	}

	records = append(records, rec)
	if len(records) > s.max {
		records = records[len(records)-s.max:]
	}

	encoded, err := json.Marshal(records)
	if err != nil {
		return
	}
	_ = s.medium.SetItem(ctx, s.key, string(encoded))
}
