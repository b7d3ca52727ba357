package generation

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-matchable failure code. The set is closed.
type Code string

// Failure codes.
const (
	CodeCredentialMissing Code = "API_KEY_MISSING"
	CodeInvalidInput      Code = "INVALID_PROMPT"
	CodeEmptyGeneration   Code = "NO_TEXT_GENERATED"
	CodeTimeout           Code = "REQUEST_TIMEOUT"
	CodeRetriesExhausted  Code = "MAX_RETRIES_EXCEEDED"
	CodeNetwork           Code = "NETWORK_ERROR"
	CodeUpstreamClient    Code = "UPSTREAM_CLIENT_ERROR"
)

// Codes lists every failure code.
var Codes = []Code{
	CodeCredentialMissing,
	CodeInvalidInput,
	CodeEmptyGeneration,
	CodeTimeout,
	CodeRetriesExhausted,
	CodeNetwork,
	CodeUpstreamClient,
}

// Sentinel errors, one per code, for use with errors.Is.
var (
	// ErrCredentialMissing is returned when no credential is stored.
	ErrCredentialMissing = errors.New("API key not configured")

	// ErrInvalidInput is returned for an empty or malformed prompt or invalid options.
	ErrInvalidInput = errors.New("invalid prompt")

	// ErrEmptyGeneration is returned when the service answered without usable text.
	ErrEmptyGeneration = errors.New("no text generated")

	// ErrTimeout is returned when an attempt exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrRetriesExhausted is returned when every allowed attempt failed.
	ErrRetriesExhausted = errors.New("maximum retry attempts exceeded")

	// ErrNetwork is returned when the service could not be reached.
	ErrNetwork = errors.New("network error")

	// ErrUpstreamClient is returned when the service rejected the request.
	ErrUpstreamClient = errors.New("request rejected by generation service")
)

var sentinels = map[Code]error{
	CodeCredentialMissing: ErrCredentialMissing,
	CodeInvalidInput:      ErrInvalidInput,
	CodeEmptyGeneration:   ErrEmptyGeneration,
	CodeTimeout:           ErrTimeout,
	CodeRetriesExhausted:  ErrRetriesExhausted,
	CodeNetwork:           ErrNetwork,
	CodeUpstreamClient:    ErrUpstreamClient,
}

// Sentinel returns the sentinel error for code, or nil for an unknown code.
func (c Code) Sentinel() error {
	return sentinels[c]
}

// Error is a normalized generation failure: a stable code, a human-readable
// message and the low-level cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// NewError creates an Error. An empty message takes the text of the code's
// sentinel.
func NewError(code Code, message string, cause error) *Error {
	if message == "" {
		if s := code.Sentinel(); s != nil {
			message = s.Error()
		} else {
			message = string(code)
		}
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the low-level cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error of e's code.
func (e *Error) Is(target error) bool {
	s := e.Code.Sentinel()
	return s != nil && s == target
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	return "", false
}
