package spill

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/agentuity/go-spill/codec"
)

// flight is the handle to the one background flush worker an engine may
// have alive. The errgroup captures the worker's fault (Wait is the join
// and the deferred-error slot in one); cancel is the cooperative abort
// signal the worker consults between items.
type flight struct {
	eg     *errgroup.Group
	cancel context.CancelFunc
}

// startFlush detaches the resident set, minus any keys in keep, and hands
// its ownership to a fresh background worker. Only one worker may be alive
// at a time, so an outstanding flight is joined first, which may surface
// its deferred fault here.
func (e *Engine[K, V]) startFlush(keep ...K) error {
	if err := e.sync(); err != nil {
		return err
	}

	detached := e.cache
	recency := e.recency
	e.cache = make(map[K]V, len(keep))
	e.recency = make(map[K]time.Time, len(keep))
	for _, k := range keep {
		if v, ok := detached[k]; ok {
			e.cache[k] = v
			e.recency[k] = recency[k]
			delete(detached, k)
		}
	}
	if len(detached) == 0 {
		return nil
	}

	// From here on the worker owns detached exclusively; the engine keeps
	// no reference to it.
	ctx, cancel := context.WithCancel(e.ctx)
	eg := new(errgroup.Group)
	e.flight = &flight{eg: eg, cancel: cancel}
	e.log.Debug("flush started: %d entries", len(detached))
	eg.Go(func() error {
		return e.drain(ctx, detached)
	})
	return nil
}

// drain persists the detached set one entry at a time, checking the abort
// signal between items. On abort the remainder is discarded rather than
// rolled back; this path only runs when the container is being cleared or
// torn down.
func (e *Engine[K, V]) drain(ctx context.Context, detached map[K]V) error {
	drained := 0
	for k, v := range detached {
		if ctx.Err() != nil {
			e.log.Debug("flush aborted: %d drained, %d discarded", drained, len(detached)-drained)
			return nil
		}
		encoded, err := codec.Encode(k)
		if err != nil {
			return err
		}
		data, err := msgpack.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "spill: marshal value")
		}
		if err := e.backend.Set(ctx, encoded, data); err != nil {
			if ctx.Err() != nil {
				// Aborted mid-write; the abort wins over the write fault.
				return nil
			}
			return err
		}
		drained++
	}
	e.log.Debug("flush complete: %d entries drained", drained)
	return nil
}

// sync joins the outstanding worker, if any. A fault captured during the
// drain is cleared and surfaced here, on whichever call synchronized next,
// wrapped but errors.Is-transparent to the original fault.
func (e *Engine[K, V]) sync() error {
	if e.flight == nil {
		return nil
	}
	f := e.flight
	e.flight = nil
	err := f.eg.Wait()
	f.cancel()
	if err != nil {
		return errors.Wrap(err, "spill: background flush failed")
	}
	return nil
}

// interrupt aborts a live worker and joins it, discarding both its
// undrained entries and any fault it captured. Used by Clear and Close,
// which throw the pending flush generation away wholesale.
func (e *Engine[K, V]) interrupt() {
	if e.flight == nil {
		return
	}
	f := e.flight
	e.flight = nil
	f.cancel()
	if err := f.eg.Wait(); err != nil {
		e.log.Debug("discarding fault from interrupted flush: %v", err)
	}
}
