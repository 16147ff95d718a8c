package spill

import "context"

// Set is a disk-spilling set. Membership is stored as the item keyed to a
// sentinel value in the underlying engine.
type Set[T comparable] struct {
	engine *Engine[T, bool]
}

// NewSet constructs a Set seeded with initial (which may be nil).
func NewSet[T comparable](ctx context.Context, initial []T, opts ...Option) (*Set[T], error) {
	var seed map[T]bool
	if len(initial) > 0 {
		seed = make(map[T]bool, len(initial))
		for _, item := range initial {
			seed[item] = true
		}
	}
	e, err := New[T, bool](ctx, seed, opts...)
	if err != nil {
		return nil, err
	}
	return &Set[T]{engine: e}, nil
}

// Add puts item in the set. Adding an existing item is a no-op.
func (s *Set[T]) Add(ctx context.Context, item T) error {
	return s.engine.Set(ctx, item, true)
}

// Discard removes item from the set. Discarding an absent item is not an
// error.
func (s *Set[T]) Discard(ctx context.Context, item T) error {
	return s.engine.Delete(ctx, item)
}

// Contains reports whether item is in the set.
func (s *Set[T]) Contains(ctx context.Context, item T) (bool, error) {
	return s.engine.Contains(ctx, item)
}

// Items returns the items currently in the store; see Engine.Keys for the
// visibility rules.
func (s *Set[T]) Items(ctx context.Context) ([]T, error) {
	return s.engine.Keys(ctx)
}

// Len returns the number of items in the store.
func (s *Set[T]) Len(ctx context.Context) (int, error) {
	return s.engine.Len(ctx)
}

// Flush spills every resident item to the store.
func (s *Set[T]) Flush(ctx context.Context) error {
	return s.engine.Flush(ctx)
}

// Clear removes every item.
func (s *Set[T]) Clear(ctx context.Context) error {
	return s.engine.Clear(ctx)
}

// Close tears down the set and its backing storage.
func (s *Set[T]) Close() error {
	return s.engine.Close()
}

// CacheSize returns the number of resident items.
func (s *Set[T]) CacheSize() int {
	return s.engine.CacheSize()
}

// CacheLimit returns the resident item limit.
func (s *Set[T]) CacheLimit() int {
	return s.engine.CacheLimit()
}

// IsOpen reports whether the set is still usable.
func (s *Set[T]) IsOpen() bool {
	return s.engine.IsOpen()
}
