package repository

import (
	"context"
	"sync"
	"time"

	"classmate/internal/util"

	"go.uber.org/zap"
)

const (
	profileCachePrefix   = "profile:"
	friendIDsCachePrefix = "friends:ids:"
	cacheExpiration      = 15 * time.Minute
)

// Cache is the cache-aside surface the repositories use. Errors are never fatal
// to a request; a failed read falls through to the database.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type redisCache struct {
	redis  *util.RedisClient
	logger *zap.Logger
}

// NewRedisCache wraps a redis client. A nil client disables caching.
func NewRedisCache(redis *util.RedisClient, logger *zap.Logger) Cache {
	return &redisCache{redis: redis, logger: logger}
}

func (c *redisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if c.redis == nil {
		return util.ErrCacheMiss
	}
	return c.redis.GetJSON(ctx, key, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Set(ctx, key, value, expiration); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Delete(ctx, keys...); err != nil {
		c.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		return err
	}
	return nil
}

// deferredCache is used inside a transaction: reads bypass the cache, writes are
// skipped and invalidations are held until the transaction commits.
type deferredCache struct {
	mu      sync.Mutex
	pending []string
}

func (c *deferredCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	return util.ErrCacheMiss
}

func (c *deferredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (c *deferredCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, keys...)
	return nil
}

func (c *deferredCache) flush(ctx context.Context, into Cache) {
	c.mu.Lock()
	keys := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(keys) > 0 {
		_ = into.Delete(ctx, keys...)
	}
}
