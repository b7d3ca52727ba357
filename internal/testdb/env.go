package testdb

import "os"

// Environment variables consulted for the test database, in order of
// preference.
const (
	EnvTestDatabaseURL    = "CADERNO_TEST_DATABASE_URL"
	EnvStorageDatabaseURL = "CADERNO_STORAGE_DATABASE_URL"
	EnvDatabaseURL        = "DATABASE_URL"
)

var databaseURLVars = []string{EnvTestDatabaseURL, EnvStorageDatabaseURL, EnvDatabaseURL}

// IsCI reports whether the process runs under a CI provider.
func IsCI() bool {
	for _, name := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"} {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}
