package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	// Caches
	siteSettingCache *cache.TieredCache // cache for site settings, optionally backed by redis
	userCache        *cache.Cache       // cache for users
	personaCache     *cache.Cache       // cache for personas

	// txHooks collects cache evictions deferred until the enclosing transaction ends.
	txHooks *[]func()
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	// Default cache settings
	cacheConfig := cache.Config{
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxItems:        1000,
		OnEviction:      nil,
	}

	tieredConfig := cache.DefaultTieredConfig()
	tieredConfig.L1TTL = time.Minute
	if profile != nil && profile.CacheRedisAddr != "" {
		tieredConfig.EnableL2 = true
		tieredConfig.Redis = cache.DefaultRedisConfig()
		tieredConfig.Redis.Addr = profile.CacheRedisAddr
	}
	siteSettingCache, err := cache.NewTieredCache(tieredConfig)
	if err != nil {
		slog.Warn("falling back to in-memory site setting cache", slog.String("error", err.Error()))
		tieredConfig.EnableL2 = false
		siteSettingCache, _ = cache.NewTieredCache(tieredConfig)
	}

	store := &Store{
		driver:           driver,
		profile:          profile,
		cacheConfig:      cacheConfig,
		siteSettingCache: siteSettingCache,
		userCache:        cache.New(cacheConfig),
		personaCache:     cache.New(cacheConfig),
	}

	return store
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	// Stop all cache cleanup goroutines
	s.siteSettingCache.Close()
	s.userCache.Close()
	s.personaCache.Close()

	return s.driver.Close()
}

// WithTx runs fn against a Store whose driver is bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
// fn must only use the Store it is given.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.txHooks != nil {
		return s.driver.RunInTx(ctx, func(d Driver) error {
			txStore := *s
			txStore.driver = d
			return fn(&txStore)
		})
	}

	hooks := []func(){}
	err := s.driver.RunInTx(ctx, func(d Driver) error {
		txStore := *s
		txStore.driver = d
		txStore.txHooks = &hooks
		return fn(&txStore)
	})
	// Evictions also run after a rollback.
	for _, hook := range hooks {
		hook()
	}
	return err
}

// afterTx runs fn once the enclosing transaction has ended, or right away outside one.
func (s *Store) afterTx(fn func()) {
	if s.txHooks == nil {
		fn()
		return
	}
	*s.txHooks = append(*s.txHooks, fn)
}
