package spill

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentuity/go-spill/store"
)

var errInjected = errors.New("injected store fault")

// hookBackend wraps a real store so tests can slow down, fail, and observe
// the worker's writes.
type hookBackend struct {
	Backend

	setDelay time.Duration

	mu          sync.Mutex
	setCalls    int
	failFrom    int // fail Set calls numbered >= failFrom; 0 disables
	inflight    int
	maxInflight int
	deletes     []string
}

func newHookBackend(t *testing.T) *hookBackend {
	t.Helper()
	s, err := store.Open(context.Background(), store.WithBaseDir(t.TempDir()))
	require.NoError(t, err)
	return &hookBackend{Backend: s}
}

func (b *hookBackend) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.inflight++
	if b.inflight > b.maxInflight {
		b.maxInflight = b.inflight
	}
	b.setCalls++
	call := b.setCalls
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()
	}()

	if b.setDelay > 0 {
		select {
		case <-time.After(b.setDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	fail := b.failFrom > 0 && call >= b.failFrom
	b.mu.Unlock()
	if fail {
		return errInjected
	}
	return b.Backend.Set(ctx, key, value)
}

func (b *hookBackend) Delete(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	b.deletes = append(b.deletes, key)
	b.mu.Unlock()
	return b.Backend.Delete(ctx, key)
}

func (b *hookBackend) stats() (setCalls, maxInflight int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setCalls, b.maxInflight
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.setDelay = 2 * time.Millisecond

	e, err := New[string, int](ctx, nil, WithCacheLimit(4), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	// Enough writes to trigger several overlapping flush opportunities.
	for i := 0; i < 40; i++ {
		require.NoError(t, e.Set(ctx, fmt.Sprintf("key-%d", i), i))
	}
	require.NoError(t, e.Flush(ctx))

	_, maxInflight := backend.stats()
	assert.Equal(t, 1, maxInflight, "no two workers may drain concurrently")

	for i := 0; i < 40; i++ {
		v, err := e.Get(ctx, fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestDeferredErrorSurfacesOnNextSync(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.failFrom = 1

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set(ctx, "a", 1))
	require.NoError(t, e.Set(ctx, "b", 2))
	// This set starts the flush that will fail in the background; the
	// fault must not surface here.
	require.NoError(t, e.Set(ctx, "c", 3))

	// The next synchronizing call surfaces the captured fault, with the
	// original fault's identity preserved through wrapping.
	_, err = e.Len(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))

	// The fault slot is cleared once surfaced.
	_, err = e.Len(ctx)
	assert.NoError(t, err)
}

func TestDeferredErrorSurfacesOnGetMiss(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.failFrom = 1

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set(ctx, "a", 1))
	require.NoError(t, e.Set(ctx, "b", 2))
	require.NoError(t, e.Set(ctx, "c", 3))

	// A read miss synchronizes, so the flush fault lands on an operation
	// unrelated to the one that caused it.
	_, err = e.Get(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInjected))
}

func TestResidentHitDoesNotSurfaceDeferredError(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.failFrom = 1

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set(ctx, "a", 1))
	require.NoError(t, e.Set(ctx, "b", 2))
	require.NoError(t, e.Set(ctx, "c", 3))

	// "c" is resident, so no synchronization happens and the pending
	// fault stays put.
	v, err := e.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = e.Len(ctx)
	assert.True(t, errors.Is(err, errInjected))
}

func TestInterruptedClearDiscardsQuietly(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.setDelay = 50 * time.Millisecond

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, e.Set(ctx, fmt.Sprintf("key-%d", i), i))
	}
	// A flush is in flight; Clear aborts it and discards the remainder
	// without surfacing anything.
	require.NoError(t, e.Clear(ctx))

	assert.Equal(t, 0, e.CacheSize())
	n, err := e.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInterruptedCloseDiscardsQuietly(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, store.WithBaseDir(t.TempDir()))
	require.NoError(t, err)
	backend := &hookBackend{Backend: s, setDelay: 50 * time.Millisecond}

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, e.Set(ctx, fmt.Sprintf("key-%d", i), i))
	}
	require.NoError(t, e.Close())
	assert.False(t, e.IsOpen())

	// The backing directory is gone with the container.
	_, err = os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestClearDiscardsPendingFault(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.failFrom = 1

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set(ctx, "a", 1))
	require.NoError(t, e.Set(ctx, "b", 2))
	require.NoError(t, e.Set(ctx, "c", 3))

	// Clear throws the flush generation away, fault included.
	require.NoError(t, e.Clear(ctx))
	_, err = e.Len(ctx)
	assert.NoError(t, err)
}

func TestFlushOfEmptyCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)

	e, err := New[string, int](ctx, nil, WithCacheLimit(2), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Flush(ctx))
	setCalls, _ := backend.stats()
	assert.Equal(t, 0, setCalls)
	assert.Nil(t, e.flight)
}

func TestSynchronousFlushLandsEverything(t *testing.T) {
	ctx := context.Background()
	backend := newHookBackend(t)
	backend.setDelay = 5 * time.Millisecond

	e, err := New[string, int](ctx, nil, WithCacheLimit(100), WithBackend(backend))
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, e.Set(ctx, fmt.Sprintf("key-%d", i), i))
	}
	require.NoError(t, e.Flush(ctx))

	// Flush returns only after every pending write has landed.
	n, err := e.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Nil(t, e.flight)
}

func TestReadMissKeepsFetchedKeyResident(t *testing.T) {
	// When a read miss fills the cache past its limit, the flush preserves
	// the just-fetched key and spills everything else.
	ctx := context.Background()
	e := newTestEngine(t, 2)

	require.NoError(t, e.Set(ctx, "a", 1))
	require.NoError(t, e.Set(ctx, "b", 2))
	require.NoError(t, e.Set(ctx, "c", 3))

	// Cache now holds only c. Reading "a" back fills the cache to its
	// limit; reading "b" overflows it and triggers the spill.
	_, err := e.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 2, e.CacheSize())

	v, err := e.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, ok := e.cache["b"]
	assert.True(t, ok, "just-fetched key must stay resident")
	assert.LessOrEqual(t, e.CacheSize(), e.CacheLimit())
}
