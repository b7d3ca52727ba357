package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/caderno-api/internal/api/shared"
	"github.com/phrazzld/caderno-api/internal/generation"
	"github.com/phrazzld/caderno-api/internal/redact"
	"github.com/phrazzld/caderno-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	if code, ok := generation.CodeOf(err); ok {
		switch code {
		case generation.CodeInvalidInput:
			return http.StatusBadRequest
		case generation.CodeCredentialMissing:
			return http.StatusPreconditionFailed
		case generation.CodeEmptyGeneration:
			return http.StatusUnprocessableEntity
		case generation.CodeTimeout:
			return http.StatusGatewayTimeout
		case generation.CodeRetriesExhausted:
			return http.StatusServiceUnavailable
		case generation.CodeNetwork, generation.CodeUpstreamClient:
			return http.StatusBadGateway
		}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err. Generation
// errors keep their normalized message, redacted; anything else gets a fixed
// message.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var gerr *generation.Error
	if errors.As(err, &gerr) {
		return redact.String(gerr.Message)
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return "Key not found"
	case errors.Is(err, store.ErrInvalidKey):
		return "Invalid key"
	case errors.Is(err, store.ErrQuotaExceeded):
		return "Storage quota exceeded"
	case errors.Is(err, store.ErrUnavailable):
		return "Storage not available"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the error response for err. Generation errors carry
// their code in the body.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var opts []shared.ResponseOption
	if code, ok := generation.CodeOf(err); ok {
		opts = append(opts, shared.WithErrorCode(string(code)))
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gte", "lte":
		return "out of range"
	default:
		return "validation failed"
	}
}
