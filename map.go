package spill

import "context"

// Map is a disk-spilling key/value mapping: a drop-in map replacement
// whose total size is bounded by disk rather than memory. All operations
// pass through to the engine directly.
type Map[K comparable, V any] struct {
	*Engine[K, V]
}

// NewMap constructs a Map seeded with initial (which may be nil).
func NewMap[K comparable, V any](ctx context.Context, initial map[K]V, opts ...Option) (*Map[K, V], error) {
	e, err := New[K, V](ctx, initial, opts...)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{e}, nil
}
