// Package cache stores serialized API responses with a time-to-live.
//
// Entries are kept until they expire or the cache grows past its maximum
// size, at which point the entries closest to expiry are evicted first.
package cache

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxSize is the entry capacity used when none is configured
	DefaultMaxSize = 100
	// DefaultTTL is the entry lifetime used when none is configured
	DefaultTTL = 300 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one cached response
type Entry struct {
	Payload []byte
	Headers http.Header
	Expiry  time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.Expiry)
}

// Stats is a snapshot of cache activity
type Stats struct {
	Hits      int
	Misses    int
	Evictions int
	Size      int
	HitRate   float64
}

// CorruptEntryError is returned when a cached payload can no longer be decoded.
// The entry has already been removed when this is returned.
type CorruptEntryError struct {
	Key string
	Err error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("corrupted cache entry %q: %v", e.Key, e.Err)
}

func (e *CorruptEntryError) Unwrap() error {
	return e.Err
}

// Option configures a Cache
type Option func(*Cache)

// WithMaxSize sets the entry capacity
func WithMaxSize(size int) Option {
	return func(c *Cache) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithDefaultTTL sets the lifetime used by Set when ttl is zero
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache is a thread-safe TTL cache of response payloads
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	logger     zerolog.Logger

	hits      int
	misses    int
	evictions int
}

// New creates an empty cache
func New(logger zerolog.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*Entry),
		maxSize:    DefaultMaxSize,
		defaultTTL: DefaultTTL,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultTTL returns the lifetime used when Set is given no ttl
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns the entry for key. Absent and expired entries are misses;
// expired entries are removed.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		c.logger.Debug().Str("key", key).Msg("Cache miss")
		return Entry{}, false
	}
	if entry.expired(c.now()) {
		delete(c.entries, key)
		c.misses++
		c.logger.Debug().Str("key", key).Msg("Cache entry expired")
		return Entry{}, false
	}

	c.hits++
	c.logger.Debug().Str("key", key).Msg("Cache hit")
	out := *entry
	out.Headers = entry.Headers.Clone()
	return out, true
}

// Decode looks up key and decodes its payload into v. A payload that fails
// to decode is removed and reported as *CorruptEntryError.
func (c *Cache) Decode(key string, v any) (http.Header, bool, error) {
	entry, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}

	if err := json.Unmarshal(entry.Payload, v); err != nil {
		c.Delete(key)
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to decode cached data")
		return nil, false, &CorruptEntryError{Key: key, Err: err}
	}

	return entry.Headers, true, nil
}

// Set stores payload under key for ttl, or the default TTL when ttl is zero,
// then evicts the earliest-expiring entries beyond capacity.
func (c *Cache) Set(key string, payload []byte, headers http.Header, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Payload: payload,
		Headers: headers.Clone(),
		Expiry:  c.now().Add(ttl),
	}
	c.logger.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached response")

	c.evictLocked()
}

// Delete removes key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// ClearExpired removes every expired entry and returns how many were removed
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Info().Int("removed", removed).Msg("Removed expired cache entries")
	}
	return removed
}

// ClearAll removes every entry. Counters are kept.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	c.logger.Info().Msg("Cleared all cache entries")
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if c.hits > 0 {
		s.HitRate = float64(c.hits) / float64(c.hits+c.misses)
	}
	return s
}

// evictLocked drops the earliest-expiring entries until the cache fits
func (c *Cache) evictLocked() {
	excess := len(c.entries) - c.maxSize
	if excess <= 0 {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].Expiry.Before(c.entries[keys[j]].Expiry)
	})

	for _, key := range keys[:excess] {
		delete(c.entries, key)
	}
	c.evictions += excess
	c.logger.Debug().Int("evicted", excess).Msg("Evicted cache entries")
}
