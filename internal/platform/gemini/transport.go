package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ErrMalformedResponse is returned by a Transport when a successful response
// body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed generation response")

// RequestBody is the JSON body of a generateContent call.
type RequestBody struct {
	Contents         []*genai.Content        `json:"contents"`
	GenerationConfig *genai.GenerationConfig `json:"generationConfig,omitempty"`
}

// Call is one generateContent request.
type Call struct {
	APIKey string
	Model  string
	Body   *RequestBody
}

// Transport performs a single generateContent request. It does not retry.
// Implementations return a *StatusError for non-2xx responses and
// ErrMalformedResponse for undecodable 2xx bodies.
type Transport interface {
	GenerateContent(ctx context.Context, call Call) (*genai.GenerateContentResponse, error)
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status is a rate limit or a server fault.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newStatusError(code int, message string) *StatusError {
	if message == "" {
		message = http.StatusText(code)
	}
	if message == "" {
		message = "unexpected status"
	}
	return &StatusError{StatusCode: code, Message: message}
}
