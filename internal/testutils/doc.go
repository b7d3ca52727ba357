// Package testutils provides helpers shared by tests across packages: a
// capturing slog handler and a store.Medium with failure injection.
package testutils
