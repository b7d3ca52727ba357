package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/caderno-api/internal/api/shared"
	"github.com/phrazzld/caderno-api/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(shared.TraceIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(shared.TraceIDHeader, "upstream-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "upstream-123", seen)
		assert.Equal(t, "upstream-123", w.Header().Get(shared.TraceIDHeader))
	})
}

func TestRequestLogger(t *testing.T) {
	logger, logs := testutils.NewTestLogger()
	handler := TraceMiddleware(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
	req.Header.Set(shared.TraceIDHeader, "trace-9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.Find("request completed")
	require.Len(t, entries, 1)
	assert.Equal(t, "trace-9", entries[0]["trace_id"])
	assert.EqualValues(t, http.StatusTeapot, entries[0]["status"])
	assert.Equal(t, "/api/generate", entries[0]["path"])
}
