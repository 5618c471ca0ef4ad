package describe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCacheExpiration      = time.Hour
	DefaultCacheCleanupInterval = 30 * time.Minute

	redisKeyPrefix = "marketplace:description:"
)

// Cache stores generated descriptions. Implementations treat failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, description string)
}

// MemoryCache keeps descriptions in process memory.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates an in-process cache.
func NewMemoryCache(expiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{cache: gocache.New(expiration, cleanupInterval)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	value, found := c.cache.Get(key)
	if !found {
		return "", false
	}

	description, ok := value.(string)

	return description, ok
}

func (c *MemoryCache) Set(_ context.Context, key, description string) {
	c.cache.SetDefault(key, description)
}

// RedisCache shares descriptions between instances through Redis.
type RedisCache struct {
	client     redis.UniversalClient
	expiration time.Duration
	logger     *slog.Logger
}

// NewRedisCache wraps a Redis client.
func NewRedisCache(logger *slog.Logger, client redis.UniversalClient, expiration time.Duration) *RedisCache {
	return &RedisCache{
		client:     client,
		expiration: expiration,
		logger:     logger.With("module", "description_cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	description, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Failed to read cached description", "error", err)
		}

		return "", false
	}

	return description, true
}

func (c *RedisCache) Set(ctx context.Context, key, description string) {
	err := c.client.Set(ctx, redisKeyPrefix+key, description, c.expiration).Err()
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to cache description", "error", err)
	}
}
