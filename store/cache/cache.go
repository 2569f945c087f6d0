package cache

import (
	"context"
	"sync"
	"time"
)

// Config holds the in-memory cache configuration.
type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	// MaxItems bounds the cache; the entry closest to expiry is evicted first. Zero means unbounded.
	MaxItems   int
	OnEviction func(key string, value any)
}

type item struct {
	value      any
	expiration time.Time
}

// Cache is a concurrency-safe TTL cache with a background janitor.
type Cache struct {
	mu     sync.RWMutex
	items  map[string]item
	config Config

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a cache and starts its cleanup goroutine when CleanupInterval > 0.
func New(config Config) *Cache {
	c := &Cache{
		items:  make(map[string]item),
		config: config,
		stop:   make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.janitor(config.CleanupInterval)
	}
	return c
}

func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL stores value for ttl. A non-positive ttl never expires.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}

	c.mu.Lock()
	if _, exists := c.items[key]; !exists && c.config.MaxItems > 0 && len(c.items) >= c.config.MaxItems {
		c.evictOneLocked()
	}
	c.items[key] = item{value: value, expiration: expiration}
	c.mu.Unlock()
}

func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !it.expiration.IsZero() && time.Now().After(it.expiration) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		c.notify(key, it.value)
		return nil, false
	}
	return it.value, true
}

func (c *Cache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	it, ok := c.items[key]
	delete(c.items, key)
	c.mu.Unlock()
	if ok {
		c.notify(key, it.value)
	}
}

func (c *Cache) Clear(_ context.Context) {
	c.mu.Lock()
	c.items = make(map[string]item)
	c.mu.Unlock()
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. It is safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	now := time.Now()
	var evicted []string
	var values []any

	c.mu.Lock()
	for key, it := range c.items {
		if !it.expiration.IsZero() && now.After(it.expiration) {
			delete(c.items, key)
			evicted = append(evicted, key)
			values = append(values, it.value)
		}
	}
	c.mu.Unlock()

	for i, key := range evicted {
		c.notify(key, values[i])
	}
}

// evictOneLocked drops the entry expiring soonest; entries without expiry go last.
func (c *Cache) evictOneLocked() {
	var victim string
	var victimExp time.Time
	found := false
	for key, it := range c.items {
		if !found {
			victim, victimExp, found = key, it.expiration, true
			continue
		}
		if victimExp.IsZero() || (!it.expiration.IsZero() && it.expiration.Before(victimExp)) {
			victim, victimExp = key, it.expiration
		}
	}
	if found {
		delete(c.items, victim)
	}
}

func (c *Cache) notify(key string, value any) {
	if c.config.OnEviction != nil {
		c.config.OnEviction(key, value)
	}
}
