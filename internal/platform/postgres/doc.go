// Package postgres provides a store.Medium backed by PostgreSQL.
//
// Entries live in the kv_entries table, created by the goose migrations
// embedded in this package. Connections go through database/sql with the pgx
// driver. Database errors are translated into the sentinel errors of the store
// package by MapError, so a disk-full condition on the server surfaces as
// store.ErrQuotaExceeded exactly like an exhausted byte quota.
package postgres
