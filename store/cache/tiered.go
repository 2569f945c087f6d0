package cache

import (
	"context"
	"time"
)

// TieredCache checks L1 (memory), then L2 (Redis, optional), then an L3 fetcher.
type TieredCache struct {
	l1 *Cache
	l2 RedisCacheInterface
}

// L3Fetcher loads a value from the database on a full miss.
type L3Fetcher func(ctx context.Context, key string) (any, error)

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1MaxItems int
	L1TTL      time.Duration
	L2TTL      time.Duration
	EnableL2   bool
	Redis      *RedisCacheConfig
}

// DefaultTieredConfig returns an L1-only configuration.
func DefaultTieredConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxItems: 1000,
		L1TTL:      5 * time.Minute,
		L2TTL:      5 * time.Minute,
	}
}

// NewTieredCache creates the cache. It fails only when L2 is enabled and Redis is unreachable.
func NewTieredCache(config *TieredCacheConfig) (*TieredCache, error) {
	if config == nil {
		config = DefaultTieredConfig()
	}

	tc := &TieredCache{
		l1: New(Config{
			DefaultTTL:      config.L1TTL,
			CleanupInterval: time.Minute,
			MaxItems:        config.L1MaxItems,
		}),
	}

	if config.EnableL2 {
		redisConfig := config.Redis
		if redisConfig == nil {
			redisConfig = DefaultRedisConfig()
		}
		redisConfig.DefaultTTL = config.L2TTL
		l2, err := NewRedisCache(redisConfig)
		if err != nil {
			tc.l1.Close()
			return nil, err
		}
		tc.l2 = l2
	}

	return tc, nil
}

// NewTieredCacheWithL2 wires an existing L2 implementation.
func NewTieredCacheWithL2(config *TieredCacheConfig, l2 RedisCacheInterface) *TieredCache {
	if config == nil {
		config = DefaultTieredConfig()
	}
	return &TieredCache{
		l1: New(Config{DefaultTTL: config.L1TTL, CleanupInterval: time.Minute, MaxItems: config.L1MaxItems}),
		l2: l2,
	}
}

// Get retrieves a value from the cache, checking L1, then L2, then L3.
func (t *TieredCache) Get(ctx context.Context, key string, fetcher L3Fetcher) (any, bool) {
	if value, found := t.l1.Get(ctx, key); found {
		return value, true
	}

	if t.l2 != nil {
		if value, found := t.l2.Get(ctx, key); found {
			// Promote to L1
			t.l1.Set(ctx, key, value)
			return value, true
		}
	}

	if fetcher == nil {
		return nil, false
	}
	value, err := fetcher(ctx, key)
	if err != nil {
		return nil, false
	}
	t.Set(ctx, key, value)
	return value, true
}

// Set stores a value in both L1 and L2.
func (t *TieredCache) Set(ctx context.Context, key string, value any) {
	t.l1.Set(ctx, key, value)
	if t.l2 != nil {
		t.l2.Set(ctx, key, value)
	}
}

// Delete removes a value from both L1 and L2.
func (t *TieredCache) Delete(ctx context.Context, key string) {
	t.l1.Delete(ctx, key)
	if t.l2 != nil {
		t.l2.Delete(ctx, key)
	}
}

// Clear clears all caches.
func (t *TieredCache) Clear(ctx context.Context) {
	t.l1.Clear(ctx)
	if t.l2 != nil {
		t.l2.Clear(ctx)
	}
}

// Stats returns cache statistics.
func (t *TieredCache) Stats() map[string]any {
	return map[string]any{
		"l1_size":    t.l1.Size(),
		"l2_enabled": t.l2 != nil,
	}
}

// Close releases the L1 janitor and the L2 connection.
func (t *TieredCache) Close() {
	t.l1.Close()
	if t.l2 != nil {
		_ = t.l2.Close()
	}
}
