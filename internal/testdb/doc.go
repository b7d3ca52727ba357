// Package testdb locates the PostgreSQL database used by integration tests.
//
// Tests that need a database call RequireURL, which skips the test when no
// database is configured locally and fails it in CI, where a missing database
// is a pipeline misconfiguration rather than a reason to skip.
package testdb
