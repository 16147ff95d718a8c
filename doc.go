// Package spill provides drop-in container types — [Map], [Set],
// [Multiset], and [Sequence] — whose total size is bounded by disk rather
// than memory. Entries beyond a configurable resident limit are
// transparently spilled to an ephemeral SQLite store and fetched back on
// demand. The containers are not persistent: the backing store lives in a
// temporary directory that is created at construction and removed at
// Close.
//
// # Engine
//
// All four container types are thin views over one generic [Engine]. The
// engine keeps a bounded in-memory cache of entries plus a last-touch
// timestamp per resident key. When an insert would exceed the cache limit,
// the entire resident set is detached and handed to a background worker,
// which drains it into the store; the in-memory cache restarts empty
// (keeping, at most, a just-touched key on the read-miss path). The spill
// is all-or-nothing rather than an LRU-ranked partial eviction; the
// recency map is maintained for a future finer-grained policy but is not
// consulted when evicting.
//
// # Flush worker
//
// At most one background worker is alive per container at a time. Any
// operation that needs a consistent view of the store — a read miss, a
// delete, a containment miss, iteration — first joins the outstanding
// worker. A fault during the background drain is never raised on the
// worker itself; it is captured and returned from the next call that
// synchronizes, so callers must treat every synchronizing operation as
// potentially surfacing a fault from an earlier one. [Engine.Clear] and
// [Engine.Close] instead interrupt the worker: it stops between items and
// its undrained entries are discarded.
//
// # Visibility
//
// [Engine.Keys] and [Engine.Len] read the store only. Resident entries
// that have never been flushed are not iterated and not counted until they
// are spilled, either by crossing the cache limit or by an explicit
// [Engine.Flush]. This asymmetry is a deliberate part of the contract, not
// an optimization artifact.
//
// # Serialization
//
// Keys are serialized with msgpack ([github.com/vmihailenco/msgpack/v5])
// and widened byte-for-rune into store keys; the mapping is reversible, so
// iteration yields the original keys. Values are msgpack blobs. Keys and
// values must therefore be msgpack-encodable; functions, channels, and
// complex numbers are not.
//
// # Concurrency
//
// A container coordinates itself against its own background worker only.
// It is not safe for concurrent foreground callers; wrap it in a mutex if
// multiple goroutines must share one instance.
package spill
