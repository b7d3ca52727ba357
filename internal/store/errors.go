package store

import (
	"errors"
	"fmt"
)

// Common medium errors used across all backends.
var (
	// ErrNotFound is returned when a requested key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned when a write is refused because the medium
	// has no room left for it. Callers may free space and try again.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrUnavailable is returned when the medium cannot be read or written at all.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrInvalidKey is returned for keys the medium cannot store, such as the empty key.
	ErrInvalidKey = errors.New("invalid key")
)

// IsQuotaExceeded checks if the error signals capacity exhaustion.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// StoreError is a custom error type for medium failures with additional context.
type StoreError struct {
	Entity    string // What was being accessed (e.g., "entry", "medium")
	Operation string // The operation that failed (e.g., "get", "set")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
