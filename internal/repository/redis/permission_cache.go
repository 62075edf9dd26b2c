package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultCachePrefix = "auth:cache"

// PermissionCache stores verification and permission-check results with a
// TTL. It implements cache-aside: callers read through on a miss and write
// the computed result back; mutations invalidate by pattern instead of
// waiting for expiry.
type PermissionCache struct {
	client *red.Client
	prefix string
}

// NewPermissionCache wires a Redis client into a permission cache.
func NewPermissionCache(client *red.Client, keyPrefix string) *PermissionCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCachePrefix
	}

	return &PermissionCache{client: client, prefix: prefix}
}

// Get returns the cached value and whether the key was present. Errors are
// returned so the caller can treat them as a miss and fall through to the
// authoritative check.
func (c *PermissionCache) Get(ctx context.Context, key string) (bool, bool, error) {
	full := c.key(key)
	if full == "" {
		return false, false, errors.New("cache key must not be empty")
	}

	value, err := c.client.Get(ctx, full).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("redis get cache entry: %w", err)
	}

	return value == "1", true, nil
}

// Set stores the value under the key with the supplied TTL.
func (c *PermissionCache) Set(ctx context.Context, key string, value bool, ttl time.Duration) error {
	full := c.key(key)
	if full == "" {
		return errors.New("cache key must not be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	stored := "0"
	if value {
		stored = "1"
	}

	if err := c.client.Set(ctx, full, stored, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cache entry: %w", err)
	}

	return nil
}

// Invalidate deletes every entry matching the glob pattern using SCAN to
// avoid blocking Redis on large keyspaces.
func (c *PermissionCache) Invalidate(ctx context.Context, pattern string) error {
	full := c.key(pattern)
	if full == "" {
		return errors.New("pattern must not be empty")
	}

	iter := c.client.Scan(ctx, 0, full, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete cache entries: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan cache entries: %w", err)
	}

	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete cache entries: %w", err)
		}
	}

	return nil
}

func (c *PermissionCache) key(suffix string) string {
	trimmed := strings.TrimSpace(suffix)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}
