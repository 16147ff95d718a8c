package spill

import (
	"sync"

	"github.com/agentuity/go-spill/logger"
	"github.com/agentuity/go-spill/store"
)

// initialCacheLimit is the resident entry limit used when neither
// SetDefaultCacheLimit nor WithCacheLimit has been called.
const initialCacheLimit = 1024

// defaults holds process-wide construction defaults. It is an explicit
// struct set once at startup and read by every constructor, rather than a
// free-floating global.
type defaults struct {
	mu         sync.RWMutex
	cacheLimit int
}

var processDefaults = defaults{cacheLimit: initialCacheLimit}

// DefaultCacheLimit returns the resident entry limit applied to containers
// constructed without WithCacheLimit.
func DefaultCacheLimit() int {
	processDefaults.mu.RLock()
	defer processDefaults.mu.RUnlock()
	return processDefaults.cacheLimit
}

// SetDefaultCacheLimit sets the process-wide default resident entry limit.
// Intended to be called once at startup, before containers are
// constructed; it does not affect containers that already exist. Values
// below 1 are ignored.
func SetDefaultCacheLimit(limit int) {
	if limit < 1 {
		return
	}
	processDefaults.mu.Lock()
	defer processDefaults.mu.Unlock()
	processDefaults.cacheLimit = limit
}

// config holds the resolved configuration for a container.
type config struct {
	cacheLimit int
	log        logger.Logger
	backend    Backend
	storeOpts  []store.Option
}

// Option configures a container.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{
		cacheLimit: DefaultCacheLimit(),
		log:        logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithCacheLimit sets the maximum number of resident entries before a
// flush to disk is triggered. Defaults to DefaultCacheLimit(). The limit
// is fixed for the lifetime of the container.
func WithCacheLimit(limit int) Option {
	return func(c *config) { c.cacheLimit = limit }
}

// WithLogger sets the logger the container and its background worker log
// through. Defaults to a silent logger.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithBackend sets the persistent store the container spills to,
// transferring ownership: the container closes it on Close. Defaults to a
// fresh SQLite store in a temporary directory.
func WithBackend(b Backend) Option {
	return func(c *config) { c.backend = b }
}

// WithStoreOptions passes options through to the default SQLite store.
// Ignored when WithBackend is used.
func WithStoreOptions(opts ...store.Option) Option {
	return func(c *config) { c.storeOpts = opts }
}
