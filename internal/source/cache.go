package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the Redis-backed revalidation cache for published reads. A 60s
// TTL bounds staleness for content served from the structured-content API;
// draft reads never touch the cache. Cache failures are treated as misses.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCache connects to Redis. ttl <= 0 falls back to the 60s default.
func NewCache(redisURL string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewCacheWithClient(client, ttl), nil
}

// NewCacheWithClient wraps an existing Redis client.
func NewCacheWithClient(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Cache{client: client, prefix: "content:", ttl: ttl}
}

// Key builds a deterministic cache key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Get returns the cached entry for key, or false on miss or any Redis
// failure.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores an entry with the cache TTL. Failures are dropped; the next
// read simply misses.
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	_ = c.client.Set(ctx, c.prefix+key, value, c.ttl).Err()
}

// Invalidate removes every cached entry whose key starts with keyPrefix.
// Called after admin writes so the next read sees the new revision.
func (c *Cache) Invalidate(ctx context.Context, keyPrefix string) {
	iter := c.client.Scan(ctx, 0, c.prefix+keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
