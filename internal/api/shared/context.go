package shared

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by this package.
type ContextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries a caller-supplied trace ID in and the effective one out.
	TraceIDHeader = "X-Trace-ID"

	// maxTraceIDLength bounds caller-supplied trace IDs.
	maxTraceIDLength = 64
)

// SetTraceID stores traceID in the context, generating a new one when
// traceID is empty, too long or contains characters outside [A-Za-z0-9._-].
func SetTraceID(ctx context.Context, traceID string) context.Context {
	if !validTraceID(traceID) {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context, or "" when none is set.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
