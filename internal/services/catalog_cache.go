package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	catalogKeyPrefix = "catalog:"
	// Outside the page prefix so Invalidate never deletes it.
	catalogGenerationKey = "catalog_generation"
)

// CatalogCache stores rendered catalog pages. Every Invalidate bumps the
// generation, and Set drops pages computed under an older one.
type CatalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, key string, value interface{}, generation int64) error
	Invalidate(ctx context.Context) error
}

type RedisCatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCatalogCache connects and pings; callers run without a cache on error.
func NewRedisCatalogCache(redisURL string, ttl time.Duration) (*RedisCatalogCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisCatalogCacheFromClient(client, ttl), nil
}

func NewRedisCatalogCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCatalogCache{client: client, ttl: ttl}
}

func (c *RedisCatalogCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCatalogCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.client.Get(ctx, catalogGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

func (c *RedisCatalogCache) Set(ctx context.Context, key string, value interface{}, generation int64) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, catalogGenerationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, catalogGenerationKey)
	// An invalidation raced the write; the page is stale.
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate bumps the generation and drops every cached catalog page.
func (c *RedisCatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, catalogGenerationKey).Err(); err != nil {
		return err
	}

	iter := c.client.Scan(ctx, 0, catalogKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCatalogCache) Close() error {
	return c.client.Close()
}

// catalogCacheKey expects a normalized filter.
func catalogCacheKey(filter ProductFilter) string {
	raw, _ := json.Marshal(filter)
	sum := sha1.Sum(raw)
	return catalogKeyPrefix + hex.EncodeToString(sum[:])
}

func invalidateCatalog(ctx context.Context, cache CatalogCache) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		logWarn("catalog cache invalidation failed", err)
	}
}
