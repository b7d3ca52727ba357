package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/phrazzld/caderno-api/internal/store"
)

// PostgreSQL error codes
const (
	// diskFullCode is raised when the server runs out of disk space
	diskFullCode = "53100"

	// outOfMemoryCode is raised when the server cannot allocate memory
	outOfMemoryCode = "53200"

	// programLimitExceededCode covers values too large to store
	programLimitExceededCode = "54000"

	// tooManyConnectionsCode is raised when the connection limit is reached
	tooManyConnectionsCode = "53300"
)

// MapError maps a database error to a store error.
// It wraps the original error to preserve context.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case diskFullCode, programLimitExceededCode:
			return fmt.Errorf("%w: %v", store.ErrQuotaExceeded, err)
		case outOfMemoryCode, tooManyConnectionsCode:
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		// other server-side errors are returned as-is
		return err
	}

	// anything without a server response means the database could not be reached
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// IsQuotaError checks if the given error is a PostgreSQL capacity error.
func IsQuotaError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == diskFullCode || pgErr.Code == programLimitExceededCode)
}
