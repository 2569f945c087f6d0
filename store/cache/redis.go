package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCacheInterface is the L2 contract of the tiered cache.
// Redis is optional and only needed when several overflew processes share one database.
type RedisCacheInterface interface {
	Set(ctx context.Context, key string, value any)
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration)
	Get(ctx context.Context, key string) (any, bool)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	Close() error
}

// RedisCacheConfig holds the Redis connection configuration.
type RedisCacheConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DefaultTTL   time.Duration
	PoolSize     int
	MinIdleConns int
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisCacheConfig {
	return &RedisCacheConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "overflew:",
		DefaultTTL:   5 * time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// RedisCache stores JSON-encoded values in Redis.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	defaultTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(config *RedisCacheConfig) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	slog.Info("Redis cache connected", "addr", config.Addr)

	return &RedisCache{
		client:     client,
		keyPrefix:  config.KeyPrefix,
		defaultTTL: config.DefaultTTL,
	}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value any) {
	r.SetWithTTL(ctx, key, value, r.defaultTTL)
}

func (r *RedisCache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("failed to marshal cache value", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.fullKey(key), data, ttl).Err(); err != nil {
		slog.Warn("failed to set cache value", "key", key, "error", err)
	}
}

// Get returns the JSON-decoded value; structured values come back as map[string]any.
func (r *RedisCache) Get(ctx context.Context, key string) (any, bool) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("failed to get cache value", "key", key, "error", err)
		}
		return nil, false
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		slog.Warn("failed to unmarshal cache value", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

func (r *RedisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		slog.Warn("failed to delete cache value", "key", key, "error", err)
	}
}

func (r *RedisCache) Clear(ctx context.Context) {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			r.client.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		r.client.Del(ctx, keys...)
	}
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) fullKey(key string) string {
	return r.keyPrefix + key
}
