package tenant

import (
	"context"
	"sync"
	"time"
)

// Cache fronts the tenant registry on the resolution hot path. Lookups must
// be non-blocking; only the registry round-trip may do I/O.
//
// Negative entries remember that a routing key resolved to nothing, so
// repeated probes for unknown subdomains do not reach the registry. Get
// reports a negative hit as (nil, true).
type Cache interface {
	// Get retrieves a cached resolution. ok=false means the key is
	// unknown; ok=true with a nil tenant is a cached miss.
	Get(ctx context.Context, key string) (t *Tenant, ok bool)

	// Set stores a positive resolution with the given TTL.
	Set(ctx context.Context, key string, t *Tenant, ttl time.Duration)

	// SetNegative remembers that the key resolved to nothing. Negative
	// TTLs should be shorter than positive ones to blunt enumeration
	// probing without holding misses for long.
	SetNegative(ctx context.Context, key string, ttl time.Duration)

	// Delete invalidates an entry. Registry writes (deactivation, slug
	// rename) call this in the same logical operation so staleness after
	// a deactivation is effectively zero rather than a full TTL.
	Delete(ctx context.Context, key string)

	// Close releases any resources held by the cache.
	Close() error
}

// DefaultCacheSize is the default maximum number of items in the cache.
const DefaultCacheSize = 1000

type cacheItem struct {
	tenant    *Tenant // nil for negative entries
	expiresAt time.Time
}

// inMemoryCache is the default in-process cache: TTL per entry, LRU
// eviction at capacity, and a janitor goroutine sweeping expired items.
type inMemoryCache struct {
	mu      sync.RWMutex
	items   map[string]cacheItem
	lru     []string
	maxSize int
	stop    chan struct{}
	done    chan struct{}
	closed  bool
}

// NewInMemoryCache creates an in-memory cache with automatic cleanup.
func NewInMemoryCache() Cache {
	return NewInMemoryCacheWithSize(DefaultCacheSize)
}

// NewInMemoryCacheWithSize creates an in-memory cache with a size limit.
func NewInMemoryCacheWithSize(maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	c := &inMemoryCache{
		items:   make(map[string]cacheItem),
		lru:     make([]string, 0, maxSize),
		maxSize: maxSize,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go c.cleanup()

	return c
}

func (c *inMemoryCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		c.removeLRU(key)
		return nil, false
	}

	c.updateLRU(key)

	return item.tenant, true
}

func (c *inMemoryCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {
	c.set(key, t, ttl)
}

func (c *inMemoryCache) SetNegative(ctx context.Context, key string, ttl time.Duration) {
	c.set(key, nil, ttl)
}

func (c *inMemoryCache) set(key string, t *Tenant, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		if len(c.lru) > 0 {
			evictKey := c.lru[0]
			delete(c.items, evictKey)
			c.lru = c.lru[1:]
		}
	}

	c.items[key] = cacheItem{
		tenant:    t,
		expiresAt: time.Now().Add(ttl),
	}

	c.updateLRU(key)
}

func (c *inMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	c.removeLRU(key)
}

func (c *inMemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *inMemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			c.removeLRU(key)
		}
	}
}

// updateLRU moves the key to the end of the queue (most recently used).
func (c *inMemoryCache) updateLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append(c.lru, key)
}

func (c *inMemoryCache) removeLRU(key string) {
	for i, k := range c.lru {
		if k == key {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			return
		}
	}
}

// Close stops the cleanup goroutine and waits for it to finish.
func (c *inMemoryCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return nil
}

// noOpCache disables caching. Useful in tests asserting registry traffic.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache.
func NewNoOpCache() Cache { return &noOpCache{} }

func (n *noOpCache) Get(ctx context.Context, key string) (*Tenant, bool) { return nil, false }

func (n *noOpCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {}

func (n *noOpCache) SetNegative(ctx context.Context, key string, ttl time.Duration) {}

func (n *noOpCache) Delete(ctx context.Context, key string) {}

func (n *noOpCache) Close() error { return nil }
