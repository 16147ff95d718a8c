package spill

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Sequence is a disk-spilling append-only sequence. Entries are keyed by
// their integer index in the underlying engine; only appending at the end
// and deleting from the tail are supported, so the occupied indices are
// always 0..Len()-1 with no holes.
type Sequence[V any] struct {
	engine *Engine[int, V]
	length int
}

// NewSequence constructs a Sequence seeded with initial (which may be nil).
func NewSequence[V any](ctx context.Context, initial []V, opts ...Option) (*Sequence[V], error) {
	var seed map[int]V
	if len(initial) > 0 {
		seed = make(map[int]V, len(initial))
		for i, v := range initial {
			seed[i] = v
		}
	}
	e, err := New[int, V](ctx, seed, opts...)
	if err != nil {
		return nil, err
	}
	return &Sequence[V]{engine: e, length: len(initial)}, nil
}

// Len returns the sequence length. Unlike the engine's store-only Len,
// this counts every appended entry regardless of where it resides.
func (s *Sequence[V]) Len() int {
	return s.length
}

// Append adds value at the end of the sequence.
func (s *Sequence[V]) Append(ctx context.Context, value V) error {
	if err := s.engine.Set(ctx, s.length, value); err != nil {
		return err
	}
	s.length++
	return nil
}

// Get returns the value at index.
func (s *Sequence[V]) Get(ctx context.Context, index int) (V, error) {
	if index < 0 || index >= s.length {
		var zero V
		return zero, errors.Wrapf(ErrKeyNotFound, "index %d out of range [0, %d)", index, s.length)
	}
	return s.engine.Get(ctx, index)
}

// Put overwrites the value at an existing index.
func (s *Sequence[V]) Put(ctx context.Context, index int, value V) error {
	if index < 0 || index >= s.length {
		return errors.Wrapf(ErrKeyNotFound, "index %d out of range [0, %d)", index, s.length)
	}
	return s.engine.Set(ctx, index, value)
}

// Insert adds value at index, which must equal the current length;
// inserting anywhere mid-sequence is unsupported.
func (s *Sequence[V]) Insert(ctx context.Context, index int, value V) error {
	if index != s.length {
		return errors.Wrapf(ErrUnsupportedOperation, "insert at %d, length %d", index, s.length)
	}
	return s.Append(ctx, value)
}

// Delete removes the value at index, which must be the tail; deleting
// anywhere mid-sequence is unsupported.
func (s *Sequence[V]) Delete(ctx context.Context, index int) error {
	if index != s.length-1 || s.length == 0 {
		return errors.Wrapf(ErrUnsupportedOperation, "delete at %d, length %d", index, s.length)
	}
	if err := s.engine.Delete(ctx, index); err != nil {
		return err
	}
	s.length--
	return nil
}

// Trim deletes entries from the tail down until the sequence has length n,
// in strictly descending index order, so a mid-operation failure leaves a
// consistent shorter-or-equal sequence. Trimming to the current length or
// beyond is a no-op.
func (s *Sequence[V]) Trim(ctx context.Context, n int) error {
	if n < 0 {
		n = 0
	}
	for s.length > n {
		if err := s.engine.Delete(ctx, s.length-1); err != nil {
			return err
		}
		s.length--
	}
	return nil
}

// Flush spills every resident entry to the store.
func (s *Sequence[V]) Flush(ctx context.Context) error {
	return s.engine.Flush(ctx)
}

// Clear removes every entry and resets the length to zero.
func (s *Sequence[V]) Clear(ctx context.Context) error {
	if err := s.engine.Clear(ctx); err != nil {
		return err
	}
	s.length = 0
	return nil
}

// Close tears down the sequence and its backing storage.
func (s *Sequence[V]) Close() error {
	return s.engine.Close()
}

// CacheSize returns the number of resident entries.
func (s *Sequence[V]) CacheSize() int {
	return s.engine.CacheSize()
}

// CacheLimit returns the resident entry limit.
func (s *Sequence[V]) CacheLimit() int {
	return s.engine.CacheLimit()
}

// IsOpen reports whether the sequence is still usable.
func (s *Sequence[V]) IsOpen() bool {
	return s.engine.IsOpen()
}
