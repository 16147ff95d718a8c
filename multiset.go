package spill

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Multiset is a disk-spilling multiset. Each distinct item is stored once
// in the underlying engine with an integer count.
type Multiset[T comparable] struct {
	engine *Engine[T, int]
}

// NewMultiset constructs a Multiset seeded with initial (which may be nil,
// and may contain repeats).
func NewMultiset[T comparable](ctx context.Context, initial []T, opts ...Option) (*Multiset[T], error) {
	var seed map[T]int
	if len(initial) > 0 {
		seed = make(map[T]int, len(initial))
		for _, item := range initial {
			seed[item]++
		}
	}
	e, err := New[T, int](ctx, seed, opts...)
	if err != nil {
		return nil, err
	}
	return &Multiset[T]{engine: e}, nil
}

// Add increments the count for item, inserting it at one if absent.
func (m *Multiset[T]) Add(ctx context.Context, item T) error {
	count, err := m.engine.Get(ctx, item)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			return err
		}
		count = 0
	}
	return m.engine.Set(ctx, item, count+1)
}

// Discard decrements the count for item, removing it entirely at zero.
// Discarding an absent item is not an error.
func (m *Multiset[T]) Discard(ctx context.Context, item T) error {
	count, err := m.engine.Get(ctx, item)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil
		}
		return err
	}
	if count <= 1 {
		return m.engine.Delete(ctx, item)
	}
	return m.engine.Set(ctx, item, count-1)
}

// Count returns the multiplicity of item, zero if absent.
func (m *Multiset[T]) Count(ctx context.Context, item T) (int, error) {
	count, err := m.engine.Get(ctx, item)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// Contains reports whether item has a nonzero count.
func (m *Multiset[T]) Contains(ctx context.Context, item T) (bool, error) {
	return m.engine.Contains(ctx, item)
}

// Items expands each stored item into count repetitions. Visibility
// follows Engine.Keys: only items that have been spilled to the store are
// included, and fetching their counts moves them back into memory.
func (m *Multiset[T]) Items(ctx context.Context) ([]T, error) {
	distinct, err := m.engine.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var items []T
	for _, item := range distinct {
		count, err := m.engine.Get(ctx, item)
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			items = append(items, item)
		}
	}
	return items, nil
}

// Flush spills every resident item to the store.
func (m *Multiset[T]) Flush(ctx context.Context) error {
	return m.engine.Flush(ctx)
}

// Clear removes every item.
func (m *Multiset[T]) Clear(ctx context.Context) error {
	return m.engine.Clear(ctx)
}

// Close tears down the multiset and its backing storage.
func (m *Multiset[T]) Close() error {
	return m.engine.Close()
}

// CacheSize returns the number of resident distinct items.
func (m *Multiset[T]) CacheSize() int {
	return m.engine.CacheSize()
}

// CacheLimit returns the resident distinct item limit.
func (m *Multiset[T]) CacheLimit() int {
	return m.engine.CacheLimit()
}

// IsOpen reports whether the multiset is still usable.
func (m *Multiset[T]) IsOpen() bool {
	return m.engine.IsOpen()
}
