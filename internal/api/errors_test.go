package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/caderno-api/internal/api/shared"
	"github.com/phrazzld/caderno-api/internal/generation"
	"github.com/phrazzld/caderno-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid prompt", generation.NewError(generation.CodeInvalidInput, "", nil), http.StatusBadRequest},
		{"missing credential", generation.NewError(generation.CodeCredentialMissing, "", nil), http.StatusPreconditionFailed},
		{"empty generation", generation.NewError(generation.CodeEmptyGeneration, "", nil), http.StatusUnprocessableEntity},
		{"timeout", generation.NewError(generation.CodeTimeout, "", nil), http.StatusGatewayTimeout},
		{"exhausted", generation.NewError(generation.CodeRetriesExhausted, "", nil), http.StatusServiceUnavailable},
		{"network", generation.NewError(generation.CodeNetwork, "", nil), http.StatusBadGateway},
		{"upstream client", generation.NewError(generation.CodeUpstreamClient, "", nil), http.StatusBadGateway},
		{"wrapped generation error", fmt.Errorf("outer: %w", generation.NewError(generation.CodeTimeout, "", nil)), http.StatusGatewayTimeout},
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"invalid key", store.ErrInvalidKey, http.StatusBadRequest},
		{"quota", store.NewStoreError("entry", "set", "quota exceeded", store.ErrQuotaExceeded), http.StatusInsufficientStorage},
		{"unavailable", store.ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(errors.New("pq: password=hunter2 failed")))
	assert.Equal(t, "Key not found", GetSafeErrorMessage(store.ErrNotFound))
	assert.Equal(t, "Storage quota exceeded", GetSafeErrorMessage(store.ErrQuotaExceeded))

	gerr := generation.NewError(generation.CodeNetwork, "request to https://x.test/v1?key=super-secret-value failed", nil)
	msg := GetSafeErrorMessage(gerr)
	assert.NotContains(t, msg, "super-secret-value")
	assert.Contains(t, msg, "request to")
}

func TestHandleAPIError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
	req = req.WithContext(shared.SetTraceID(req.Context(), "trace-1"))
	w := httptest.NewRecorder()

	HandleAPIError(w, req, generation.NewError(generation.CodeCredentialMissing, "", nil))

	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "API_KEY_MISSING", body.Code)
	assert.Equal(t, "API key not configured", body.Error)
	assert.Equal(t, "trace-1", body.TraceID)
}

func TestSanitizeValidationError(t *testing.T) {
	v := validator.New()

	err := v.Struct(CredentialRequest{})
	assert.Equal(t, "Invalid APIKey: required field", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
