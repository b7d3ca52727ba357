package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/caderno-api/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{name: "no rows", err: sql.ErrNoRows, wantIs: store.ErrNotFound},
		{name: "disk full", err: &pgconn.PgError{Code: diskFullCode}, wantIs: store.ErrQuotaExceeded},
		{name: "value too large", err: &pgconn.PgError{Code: programLimitExceededCode}, wantIs: store.ErrQuotaExceeded},
		{
			name:   "wrapped disk full",
			err:    fmt.Errorf("exec: %w", &pgconn.PgError{Code: diskFullCode}),
			wantIs: store.ErrQuotaExceeded,
		},
		{name: "out of memory", err: &pgconn.PgError{Code: outOfMemoryCode}, wantIs: store.ErrUnavailable},
		{name: "too many connections", err: &pgconn.PgError{Code: tooManyConnectionsCode}, wantIs: store.ErrUnavailable},
		{name: "connection failure", err: errors.New("dial tcp: connection refused"), wantIs: store.ErrUnavailable},
		{name: "cancelled", err: context.Canceled, wantIs: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tt.err), tt.wantIs)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("unmapped server error passes through", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505"}
		assert.Same(t, pgErr, MapError(pgErr))
	})
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, IsQuotaError(&pgconn.PgError{Code: diskFullCode}))
	assert.True(t, IsQuotaError(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: programLimitExceededCode})))
	assert.False(t, IsQuotaError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsQuotaError(errors.New("plain")))
}
