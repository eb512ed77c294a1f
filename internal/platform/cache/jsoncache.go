package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss indicates the key is absent from the cache.
var ErrMiss = errors.New("platform/cache: miss")

// JSONCache stores JSON-encoded values with a fixed TTL. The pipeline
// settings lookup uses it to avoid re-reading configuration per request.
type JSONCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewJSONCache builds a JSONCache around an existing client.
func NewJSONCache(client *redis.Client, ttl time.Duration) *JSONCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JSONCache{client: client, ttl: ttl}
}

// Get unmarshals the cached value into target.
func (c *JSONCache) Get(ctx context.Context, key string, target any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

// Set stores the value under key for the configured TTL.
func (c *JSONCache) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate removes the key.
func (c *JSONCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
