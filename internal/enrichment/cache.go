package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "enrichment:"

// RedisCache stores enrichment contexts as JSON values with a TTL. Any Redis
// error is logged and treated as a miss.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisCache{client: client, ttl: ttl, logger: logger}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Context, bool) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("enrichment cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var value Context
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("enrichment cache entry is malformed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	c.logger.Debug("enrichment cache hit", zap.String("key", key))
	return &value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value *Context) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("enrichment cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, cacheKeyPrefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("enrichment cache set failed", zap.String("key", key), zap.Error(err))
	}
}
