// Package cache holds short-lived copies of expensive store reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lifeline/pkg/store"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// WindowCache caches the ranking window: the ordered records a TopByLevel query returned.
type WindowCache interface {
	// Get returns the cached window and true, or false on a miss.
	Get(ctx context.Context, key string) ([]store.Record, bool, error)
	Set(ctx context.Context, key string, records []store.Record) error
}

// RedisWindowCache implements WindowCache on Redis with a fixed TTL.
type RedisWindowCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWindowCache caches under prefix+key for ttl.
func NewRedisWindowCache(client *redis.Client, prefix string, ttl time.Duration) *RedisWindowCache {
	return &RedisWindowCache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached window for key.
func (c *RedisWindowCache) Get(ctx context.Context, key string) ([]store.Record, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read ranking window: %w", err)
	}

	var records []store.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("failed to decode ranking window: %w", err)
	}
	return records, true, nil
}

// Set stores the window without payloads, which ranking never reads.
func (c *RedisWindowCache) Set(ctx context.Context, key string, records []store.Record) error {
	slim := make([]store.Record, len(records))
	for i, r := range records {
		r.Payload = ""
		slim[i] = r
	}

	data, err := json.Marshal(slim)
	if err != nil {
		return fmt.Errorf("failed to encode ranking window: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write ranking window: %w", err)
	}
	return nil
}

// Ping checks the Redis connection, used by readiness checks.
func (c *RedisWindowCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
