// Package store implements the ephemeral key-value store the spill
// containers evict to: a single-table SQLite database living in a
// temporary directory that is created at Open and removed at Close. The
// store is scoped to the lifetime of the container that owns it and is
// never meant to survive the process.
//
// The store is not internally thread-safe; the engine guarantees that only
// one logical actor (the foreground caller or its single background
// worker) touches it at a time.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when the key is not in the store.
var ErrNotFound = errors.New("store: key not found")

// DefaultQueryTimeout is the per-operation timeout applied to every
// query. Prevents indefinite hangs on slow or unresponsive storage.
const DefaultQueryTimeout = 5 * time.Second

type config struct {
	baseDir      string
	queryTimeout time.Duration
}

// Option configures a Store.
type Option func(*config)

// WithBaseDir sets the directory the store's temporary directory is
// created under. Defaults to os.TempDir().
func WithBaseDir(dir string) Option {
	return func(c *config) { c.baseDir = dir }
}

// WithQueryTimeout sets the per-operation timeout. Defaults to
// DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// Store is an ephemeral on-disk key-value store.
type Store struct {
	db           *sql.DB
	dir          string
	queryTimeout time.Duration
	once         sync.Once
}

// Open allocates a fresh temporary directory, creates the database inside
// it, and returns a handle. Close removes the directory again.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := config{baseDir: os.TempDir(), queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := filepath.Join(cfg.baseDir, "spill-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "store: create directory")
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "spill.db"))
	if err != nil {
		os.RemoveAll(dir)
		return nil, errors.Wrap(err, "store: open database")
	}

	// Enable WAL mode for better concurrent performance.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, errors.Wrap(err, "store: enable WAL")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS spill (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		os.RemoveAll(dir)
		return nil, errors.Wrap(err, "store: create table")
	}

	return &Store{db: db, dir: dir, queryTimeout: cfg.queryTimeout}, nil
}

// Dir returns the temporary directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM spill WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "get %q", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get")
	}
	return value, nil
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spill (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return errors.Wrap(err, "store: set")
}

// Delete removes key and reports whether it was present.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	result, err := s.db.ExecContext(ctx, `DELETE FROM spill WHERE key = ?`, key)
	if err != nil {
		return false, errors.Wrap(err, "store: delete")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "store: delete")
	}
	return rows > 0, nil
}

// Contains reports whether key is in the store.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM spill WHERE key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "store: contains")
	}
	return true, nil
}

// Keys returns every key currently in the store.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM spill`)
	if err != nil {
		return nil, errors.Wrap(err, "store: keys")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "store: keys")
		}
		keys = append(keys, key)
	}
	return keys, errors.Wrap(rows.Err(), "store: keys")
}

// Len returns the number of entries in the store.
func (s *Store) Len(ctx context.Context) (int, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spill`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "store: len")
	}
	return count, nil
}

// Clear removes every entry.
func (s *Store) Clear(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM spill`)
	return errors.Wrap(err, "store: clear")
}

// Close closes the database and removes the backing directory. This is
// destructive and permanent. Closing twice is a no-op.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		dbErr := s.db.Close()
		rmErr := os.RemoveAll(s.dir)
		if dbErr != nil {
			err = errors.Wrap(dbErr, "store: close")
			return
		}
		err = errors.Wrap(rmErr, "store: remove directory")
	})
	return err
}
