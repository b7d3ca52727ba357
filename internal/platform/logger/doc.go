// Package logger provides structured logging functionality for the application
// using Go's standard library log/slog package.
//
// Setup builds the JSON logger used by every component. PersistErrors wraps a
// logger so that error-level records are also appended to the storage medium
// under the error log key, where they can be exported with the rest of the data
// and where they are the first thing dropped when the medium runs out of space.
package logger
