package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores resolved candidate lists.
type Cache interface {
	Get(ctx context.Context, key string) ([]media.Descriptor, bool, error)
	Set(ctx context.Context, key string, results []media.Descriptor, ttl time.Duration) error
}

// ConnectRedis opens a client and checks it with a ping.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "rizumu:resolve:"}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]media.Descriptor, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var results []media.Descriptor
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return results, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, results []media.Descriptor, ttl time.Duration) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

// Cached answers repeated queries from a Cache. Only non-empty results are
// stored, and a failing cache never fails a lookup.
type Cached struct {
	inner downloader.Resolver
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCached(inner downloader.Resolver, cache Cache, ttl time.Duration, log *zap.Logger) *Cached {
	return &Cached{inner: inner, cache: cache, ttl: ttl, log: log.Named("resolver-cache")}
}

func cacheKey(query string, limit int) string {
	return strconv.Itoa(limit) + "|" + query
}

func (c *Cached) Resolve(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	key := cacheKey(query, limit)

	results, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("query", query), zap.Error(err))
	} else if ok {
		return results, nil
	}

	results, err = c.inner.Resolve(ctx, query, limit)
	if err != nil || len(results) == 0 {
		return results, err
	}

	if err := c.cache.Set(ctx, key, results, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.String("query", query), zap.Error(err))
	}
	return results, nil
}
