package store

import "context"

// Medium is a raw key-value persistence backend. Values are opaque strings;
// encoding and decoding belong to the caller.
//
// Implementations must return an error wrapping ErrQuotaExceeded when a write
// is refused because the medium is full, and ErrUnavailable when the medium
// cannot be used at all.
type Medium interface {
	// GetItem returns the value stored under key. The boolean is false when the
	// key is absent.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Keys returns all stored keys in no particular order.
	Keys(ctx context.Context) ([]string, error)
}

// EntrySize is the number of bytes an entry occupies for quota accounting.
func EntrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

// CheckQuota reports whether writing an entry of newSize bytes fits within
// quota, given the current total usage and the size of the entry being
// replaced (0 for a new key). A quota of 0 or less means unlimited.
func CheckQuota(quota, used, replaced, newSize int64) error {
	if quota <= 0 {
		return nil
	}
	if used-replaced+newSize > quota {
		return NewStoreError("entry", "set", "quota exceeded", ErrQuotaExceeded)
	}
	return nil
}
