// Package store defines the contract for raw key-value persistence media.
// A Medium stores opaque string values under string keys and reports capacity
// exhaustion and unavailability through the sentinel errors in this package,
// so higher layers can react to them without knowing which backend is in use.
package store
