package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/caderno-api/internal/store"
)

func openTestMedium(t *testing.T, quota int64) *Medium {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "db", "caderno.db"), quota)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMedium_CRUD(t *testing.T) {
	ctx := context.Background()
	m := openTestMedium(t, 0)

	_, ok, err := m.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetItem(ctx, "version", "2.0"))
	require.NoError(t, m.SetItem(ctx, "version", "2.1"))

	v, ok, err := m.GetItem(ctx, "version")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2.1", v)

	require.NoError(t, m.SetItem(ctx, "other", "x"))
	keys, err := m.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"version", "other"}, keys)

	require.NoError(t, m.RemoveItem(ctx, "version"))
	_, ok, err = m.GetItem(ctx, "version")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Clear(ctx))
	keys, err = m.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMedium_Quota(t *testing.T) {
	ctx := context.Background()
	m := openTestMedium(t, 10)

	require.NoError(t, m.SetItem(ctx, "k", "123456789"))
	assert.ErrorIs(t, m.SetItem(ctx, "j", "1"), store.ErrQuotaExceeded)
	require.NoError(t, m.SetItem(ctx, "k", "abcdefghi"))
	// multi-byte characters are counted in bytes
	assert.ErrorIs(t, m.SetItem(ctx, "k", "ççççç"), store.ErrQuotaExceeded)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError("get", nil))
	assert.ErrorIs(t, MapError("get", errors.New("disk I/O error")), store.ErrUnavailable)
	assert.ErrorIs(t, MapError("get", context.Canceled), context.Canceled)
}
