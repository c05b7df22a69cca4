package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the knowledge-base / domain-status cache. It fronts lookups
// that would otherwise hit Postgres on every request (verified-domain
// status, fact counts) with a short TTL so the API
// stays responsive under repeated polling.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client from the given URL.
// The URL format follows the redis:// convention, e.g.
// "redis://localhost:6379" or "redis://:password@host:6379/0".
func NewRedisClient(ctx context.Context, url string) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close releases the underlying Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Ping verifies connectivity to Redis.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get retrieves a string value by key. Returns redis.Nil error if the key
// does not exist; callers should check with errors.Is(err, redis.Nil).
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value in Redis with the given TTL. The value is JSON-encoded
// if it is not already a string or []byte.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data interface{}
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: marshal value: %w", err)
		}
		data = encoded
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key from Redis.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete %q: %w", key, err)
	}
	return nil
}

// DomainKey builds a domain-scoped cache key.
// Format: "oracle:{category}:{domain}[:{id}]"
func DomainKey(category, domainName, id string) string {
	parts := []string{"oracle", category, domainName}
	if id != "" {
		parts = append(parts, id)
	}
	return strings.Join(parts, ":")
}

var _ KBCache = (*RedisClient)(nil)
