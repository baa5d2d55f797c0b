package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps a Redis client behind a small JSON get/set surface.
// It is constructed once in main and injected; a cache failure is
// never surfaced to callers: reads degrade to a miss and writes are
// dropped with a log line.
type Cache struct {
	rdb *redis.Client
	log zerolog.Logger
}

// New connects to Redis at addr and verifies the connection.
func New(addr string, logger zerolog.Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Cache{
		rdb: rdb,
		log: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// GetJSON loads key into dest. Returns false on miss, error or
// undecodable payload.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache payload undecodable, treating as miss")
		return false
	}
	return true
}

// SetJSON stores v under key with a TTL. Failures are logged and
// swallowed.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Delete removes keys, e.g. after an admin write invalidates a cached
// listing. Failures are logged and swallowed.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed")
	}
}

// Close tears the client down at shutdown.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
