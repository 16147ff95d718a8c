package spill

import "github.com/cockroachdb/errors"

var (
	// ErrKeyNotFound is returned by Get when the key is absent from both
	// the in-memory cache and the backing store.
	ErrKeyNotFound = errors.New("spill: key not found")

	// ErrClosed is returned by every operation invoked after Close.
	ErrClosed = errors.New("spill: container is closed")

	// ErrUnsupportedOperation is returned by Sequence for anything other
	// than appending at the end or deleting from the tail.
	ErrUnsupportedOperation = errors.New("spill: unsupported operation")
)
