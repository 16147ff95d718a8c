package spill

import (
	"context"

	"github.com/agentuity/go-spill/store"
)

// Backend is the persistent key-value store a container spills evicted
// entries to. Keys are codec-encoded strings, values are msgpack blobs.
// Implementations are not required to be thread-safe: the engine
// guarantees only one logical actor touches the backend at a time.
type Backend interface {
	// Get returns the value stored under key, or store.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key and reports whether it was present.
	Delete(ctx context.Context, key string) (bool, error)
	// Contains reports whether key is present.
	Contains(ctx context.Context, key string) (bool, error)
	// Keys returns every key currently stored.
	Keys(ctx context.Context) ([]string, error)
	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Close releases the backend and its backing storage permanently.
	Close() error
}

var _ Backend = (*store.Store)(nil)
