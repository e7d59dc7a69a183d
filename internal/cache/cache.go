// Package cache provides the process-local, time-windowed result cache
// used to avoid redundant vision-model calls, plus a per-subject
// debouncer that serves the last known result during tight re-request
// loops. Neither structure persists across restarts or shares state
// across processes.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTTL is the freshness window for general-purpose caching.
const DefaultTTL = 5 * time.Minute

// keyPrefixLen bounds how much of the encoded image payload goes into a
// cache key. A prefix is a cheap proxy fingerprint, not an integrity
// check; a false-positive hit only costs a slightly stale result.
const keyPrefixLen = 100

type entry struct {
	value     any
	timestamp time.Time
}

// Cache is a time-windowed key-value map. Entries past the TTL are
// treated as absent and evicted lazily on lookup; Sweep evicts the rest.
// Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock injects the time source. Tests use this to advance virtual
// time deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache with the default TTL and wall clock.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a cache key from a bounded prefix of the image payload plus
// a serialization of the auxiliary parameters.
func Key(imageData string, params any) string {
	prefix := imageData
	if len(prefix) > keyPrefixLen {
		prefix = prefix[:keyPrefixLen]
	}
	var paramStr string
	if params != nil {
		if b, err := json.Marshal(params); err == nil {
			paramStr = string(b)
		}
	}
	return prefix + "_" + paramStr
}

// Get returns the cached value for key if it is still within the
// freshness window. An expired entry is removed and reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.timestamp) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, stamped with the current time.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, timestamp: c.now()}
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every expired entry. Lazy eviction only fires on reads,
// so a long-running server schedules periodic sweeps to keep unread
// stale entries from accumulating.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("remaining", len(c.entries)).Msg("Cache sweep evicted expired entries")
	}
	return removed
}
