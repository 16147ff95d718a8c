package spill

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/agentuity/go-spill/codec"
	"github.com/agentuity/go-spill/logger"
	"github.com/agentuity/go-spill/store"
)

// Engine is the bounded cache fronting a persistent store. It holds up to
// its cache limit of entries in memory; beyond that, the resident set is
// handed wholesale to a background worker and drained to disk.
//
// An Engine coordinates itself against its own background worker only. It
// is not safe for concurrent foreground callers.
type Engine[K comparable, V any] struct {
	ctx     context.Context
	cache   map[K]V
	recency map[K]time.Time
	limit   int
	backend Backend
	log     logger.Logger
	flight  *flight
	open    bool
}

// New constructs an Engine seeded with initial (which may be nil). The
// backing store is created immediately and lives until Close.
func New[K comparable, V any](ctx context.Context, initial map[K]V, opts ...Option) (*Engine[K, V], error) {
	cfg := applyOptions(opts)
	if cfg.cacheLimit < 1 {
		return nil, errors.Newf("spill: cache limit must be positive, got %d", cfg.cacheLimit)
	}

	backend := cfg.backend
	if backend == nil {
		s, err := store.Open(ctx, cfg.storeOpts...)
		if err != nil {
			return nil, err
		}
		backend = s
	}

	e := &Engine[K, V]{
		ctx:     ctx,
		cache:   make(map[K]V, len(initial)),
		recency: make(map[K]time.Time, len(initial)),
		limit:   cfg.cacheLimit,
		backend: backend,
		log:     cfg.log,
		open:    true,
	}
	now := time.Now()
	for k, v := range initial {
		e.cache[k] = v
		e.recency[k] = now
	}
	return e, nil
}

// CacheLimit returns the resident entry limit. Fixed after construction.
func (e *Engine[K, V]) CacheLimit() int {
	return e.limit
}

// CacheSize returns the number of entries currently resident in memory.
func (e *Engine[K, V]) CacheSize() int {
	return len(e.cache)
}

// IsOpen reports whether the engine is still usable.
func (e *Engine[K, V]) IsOpen() bool {
	return e.open
}

// Get returns the value for key. A resident entry is returned directly and
// its recency refreshed. Otherwise the engine joins any outstanding flush
// (surfacing its deferred fault, if any) and fetches the entry back from
// the store; the fetch is a move, so the store copy is removed and the
// entry becomes resident again.
func (e *Engine[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V
	if !e.open {
		return zero, ErrClosed
	}
	if v, ok := e.cache[key]; ok {
		e.recency[key] = time.Now()
		return v, nil
	}
	if err := e.sync(); err != nil {
		return zero, err
	}
	encoded, err := codec.Encode(key)
	if err != nil {
		return zero, err
	}
	data, err := e.backend.Get(ctx, encoded)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, errors.Wrapf(ErrKeyNotFound, "get %v", key)
		}
		return zero, err
	}
	var val V
	if err := msgpack.Unmarshal(data, &val); err != nil {
		return zero, errors.Wrap(err, "spill: unmarshal value")
	}
	if _, err := e.backend.Delete(ctx, encoded); err != nil {
		return zero, err
	}
	e.cache[key] = val
	e.recency[key] = time.Now()
	if len(e.cache) > e.limit {
		// Spill everything except the entry we just touched.
		if err := e.startFlush(key); err != nil {
			return zero, err
		}
	}
	return val, nil
}

// Set stores value under key. Overwriting a resident entry deliberately
// does not refresh its recency; only fresh inserts and reads do. Inserting
// past the cache limit first spills the entire resident set.
func (e *Engine[K, V]) Set(ctx context.Context, key K, value V) error {
	if !e.open {
		return ErrClosed
	}
	if _, ok := e.cache[key]; ok {
		e.cache[key] = value
		return nil
	}
	if len(e.cache) >= e.limit {
		if err := e.startFlush(); err != nil {
			return err
		}
	}
	e.cache[key] = value
	e.recency[key] = time.Now()
	return nil
}

// Delete removes key from the container. Deleting a key that exists
// nowhere is not an error: once the resident copy (if any) is gone, the
// store delete is best-effort and idempotent.
func (e *Engine[K, V]) Delete(ctx context.Context, key K) error {
	if !e.open {
		return ErrClosed
	}
	if _, ok := e.cache[key]; ok {
		delete(e.cache, key)
		delete(e.recency, key)
	}
	if err := e.sync(); err != nil {
		return err
	}
	encoded, err := codec.Encode(key)
	if err != nil {
		return err
	}
	_, err = e.backend.Delete(ctx, encoded)
	return err
}

// Contains reports whether key is in the container, refreshing its recency
// on a resident hit.
func (e *Engine[K, V]) Contains(ctx context.Context, key K) (bool, error) {
	if !e.open {
		return false, ErrClosed
	}
	if _, ok := e.cache[key]; ok {
		e.recency[key] = time.Now()
		return true, nil
	}
	if err := e.sync(); err != nil {
		return false, err
	}
	encoded, err := codec.Encode(key)
	if err != nil {
		return false, err
	}
	return e.backend.Contains(ctx, encoded)
}

// Keys returns the keys currently in the store. Resident entries that have
// never been flushed are intentionally not included; they become visible
// once spilled (or after Flush).
func (e *Engine[K, V]) Keys(ctx context.Context) ([]K, error) {
	if !e.open {
		return nil, ErrClosed
	}
	if err := e.sync(); err != nil {
		return nil, err
	}
	raw, err := e.backend.Keys(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]K, 0, len(raw))
	for _, r := range raw {
		key, err := codec.Decode[K](r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Len returns the number of entries in the store. Like Keys, it does not
// count resident entries that have never been flushed.
func (e *Engine[K, V]) Len(ctx context.Context) (int, error) {
	if !e.open {
		return 0, ErrClosed
	}
	if err := e.sync(); err != nil {
		return 0, err
	}
	return e.backend.Len(ctx)
}

// Flush synchronously spills every resident entry to the store. It returns
// once the drain has finished, so all pending writes have landed.
func (e *Engine[K, V]) Flush(ctx context.Context) error {
	if !e.open {
		return ErrClosed
	}
	if err := e.startFlush(); err != nil {
		return err
	}
	return e.sync()
}

// Clear empties the container. A flush in flight is interrupted and its
// undrained entries are discarded, along with any fault it captured.
func (e *Engine[K, V]) Clear(ctx context.Context) error {
	if !e.open {
		return ErrClosed
	}
	e.interrupt()
	e.cache = make(map[K]V)
	e.recency = make(map[K]time.Time)
	return e.backend.Clear(ctx)
}

// Close interrupts any flush in flight, discards whatever it had not yet
// persisted, releases the store and its on-disk backing, and marks the
// engine closed. Closing twice is a no-op.
func (e *Engine[K, V]) Close() error {
	if !e.open {
		return nil
	}
	e.interrupt()
	e.open = false
	e.cache = nil
	e.recency = nil
	return e.backend.Close()
}
