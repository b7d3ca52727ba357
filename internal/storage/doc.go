// Package storage implements the application's key-value store on top of a
// store.Medium.
//
// The Store is best-effort: it never returns errors from its read and write
// operations. Failures are logged and reported through boolean results or
// caller-supplied defaults, and a medium that fails the availability probe at
// construction turns every operation into a no-op for the lifetime of the
// Store.
//
// Values are serialized per write. Strings are stored unchanged and every
// other value is JSON encoded. Reads decode JSON and fall back to the raw
// string when the stored text is not JSON.
//
// When the medium refuses a write because it is full, the Store runs a single
// synchronous eviction pass: it drops the persisted error log and trims the
// notebook collection to the most recently updated records. The refused write
// is not retried.
package storage
