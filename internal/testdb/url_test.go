package testdb

import (
	"testing"

	"github.com/phrazzld/caderno-api/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range append(databaseURLVars, "CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI") {
		t.Setenv(name, "")
	}
}

func TestDatabaseURL(t *testing.T) {
	t.Run("none set", func(t *testing.T) {
		clearEnv(t)
		assert.Empty(t, DatabaseURL(nil))
	})

	t.Run("preferred variable wins", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvDatabaseURL, "postgres://other@localhost/other")
		t.Setenv(EnvTestDatabaseURL, "postgres://test@localhost/caderno_test")

		logger, logs := testutils.NewTestLogger()
		assert.Equal(t, "postgres://test@localhost/caderno_test", DatabaseURL(logger))
		assert.Empty(t, logs.Entries())
	})

	t.Run("fallback is logged without credentials", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvDatabaseURL, "postgres://app:hunter2@db:5432/caderno")

		logger, logs := testutils.NewTestLogger()
		assert.Equal(t, "postgres://app:hunter2@db:5432/caderno", DatabaseURL(logger))

		entries := logs.Find("using fallback database URL variable")
		require.Len(t, entries, 1)
		assert.Equal(t, EnvDatabaseURL, entries[0]["used_var"])
		assert.NotContains(t, entries[0]["url"], "hunter2")
	})
}

func TestIsCI(t *testing.T) {
	clearEnv(t)
	assert.False(t, IsCI())

	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, IsCI())
}

func TestRequireURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTestDatabaseURL, "postgres://test@localhost/caderno_test")
	assert.Equal(t, "postgres://test@localhost/caderno_test", RequireURL(t))
}
