package services

import (
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultCheckTTL is how long a check result is served from memory.
	DefaultCheckTTL = 2 * time.Minute
	// DefaultFilterTTL is how long the content filter list is served from memory.
	DefaultFilterTTL = 15 * time.Minute

	contentFiltersKey = "content_filters"
)

// CheckCache is the process-local cache owned by one BlacklistService.
// Every Clear starts a new generation; writes carry the generation their
// lookup started in and are dropped if the cache was cleared meanwhile.
type CheckCache struct {
	items      *gocache.Cache
	defaultTTL time.Duration

	mu  sync.Mutex
	gen uint64
}

// NewCheckCache creates a cache whose entries expire after ttl unless stored
// with SetWithTTL.
func NewCheckCache(ttl time.Duration) *CheckCache {
	if ttl <= 0 {
		ttl = DefaultCheckTTL
	}
	return &CheckCache{
		items:      gocache.New(ttl, 2*ttl),
		defaultTTL: ttl,
	}
}

// Get returns a live entry. Expired entries are misses.
func (c *CheckCache) Get(key string) (any, bool) {
	return c.items.Get(key)
}

// Generation identifies the current contents; read it before a remote call.
func (c *CheckCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Set stores a value with the default TTL if gen is still current.
func (c *CheckCache) Set(gen uint64, key string, value any) bool {
	return c.SetWithTTL(gen, key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL if gen is still current.
func (c *CheckCache) SetWithTTL(gen uint64, key string, value any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.items.Set(key, value, ttl)
	return true
}

// Clear drops every entry and invalidates lookups still in flight.
func (c *CheckCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.items.Flush()
}

// CacheKey generates a cache key for a category and its identifying parts
func CacheKey(resource string, parts ...string) string {
	return fmt.Sprintf("%s:%s", resource, strings.Join(parts, ":"))
}

// flightKey scopes singleflight calls to one cache generation, so a lookup
// started after Clear never joins one started before it.
func flightKey(key string, gen uint64) string {
	return fmt.Sprintf("%s#%d", key, gen)
}
