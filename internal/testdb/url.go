package testdb

import (
	"log/slog"
	"os"
	"testing"

	"github.com/phrazzld/caderno-api/internal/redact"
)

// DatabaseURL returns the first database URL set in the environment, or ""
// when none is. Falling back past the preferred variable logs a warning.
func DatabaseURL(logger *slog.Logger) string {
	for i, name := range databaseURLVars {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		if i > 0 && logger != nil {
			logger.Warn("using fallback database URL variable",
				"used_var", name,
				"preferred_var", EnvTestDatabaseURL,
				"url", redact.URL(value))
		}
		return value
	}
	return ""
}

// RequireURL returns the test database URL. Without one the test is skipped,
// or failed when running in CI.
func RequireURL(t testing.TB) string {
	t.Helper()
	url := DatabaseURL(slog.Default())
	if url != "" {
		return url
	}
	if IsCI() {
		t.Fatalf("no test database configured in CI: set %s", EnvTestDatabaseURL)
	}
	t.Skipf("%s not set, skipping database test", EnvTestDatabaseURL)
	return ""
}
