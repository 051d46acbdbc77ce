package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/casetrail/authd/pkg/config"
)

// Cache key namespaces. Access and refresh entries are independent:
// revoking one kind never touches the other.
const (
	accessKeyPrefix  = "access:"
	refreshKeyPrefix = "refresh:"
)

// TokenCache stores issued tokens in Redis keyed by the token string.
// Each entry carries a TTL equal to the token's lifetime, so entries
// expire together with the tokens they describe. Deleting an entry
// revokes the token early.
type TokenCache struct {
	client *redis.Client
}

// NewTokenCache connects to Redis and verifies the connection
func NewTokenCache(cfg config.RedisConfig) (*TokenCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Override with config values if provided
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &TokenCache{client: client}, nil
}

// NewTokenCacheWithClient wraps an existing Redis client. Used in tests.
func NewTokenCacheWithClient(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

// Client exposes the underlying Redis client for health checks
func (c *TokenCache) Client() *redis.Client {
	return c.client
}

// PutAccess caches an access token with the given TTL
func (c *TokenCache) PutAccess(ctx context.Context, token string, value CachedToken, ttl time.Duration) error {
	return c.put(ctx, accessKeyPrefix+token, value, ttl)
}

// PutRefresh caches a refresh token with the given TTL
func (c *TokenCache) PutRefresh(ctx context.Context, token string, value CachedToken, ttl time.Duration) error {
	return c.put(ctx, refreshKeyPrefix+token, value, ttl)
}

// GetAccess looks up an access token. Returns (nil, nil) on a miss.
func (c *TokenCache) GetAccess(ctx context.Context, token string) (*CachedToken, error) {
	return c.get(ctx, accessKeyPrefix+token)
}

// GetRefresh looks up a refresh token. Returns (nil, nil) on a miss.
func (c *TokenCache) GetRefresh(ctx context.Context, token string) (*CachedToken, error) {
	return c.get(ctx, refreshKeyPrefix+token)
}

// DeleteAccess revokes an access token
func (c *TokenCache) DeleteAccess(ctx context.Context, token string) error {
	return c.client.Del(ctx, accessKeyPrefix+token).Err()
}

// DeleteRefresh revokes a refresh token
func (c *TokenCache) DeleteRefresh(ctx context.Context, token string) error {
	return c.client.Del(ctx, refreshKeyPrefix+token).Err()
}

// Close closes the Redis connection
func (c *TokenCache) Close() error {
	return c.client.Close()
}

func (c *TokenCache) put(ctx context.Context, key string, value CachedToken, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cached token: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *TokenCache) get(ctx context.Context, key string) (*CachedToken, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var value CachedToken
	if err := json.Unmarshal([]byte(data), &value); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal cached token: %w", err)
	}

	return &value, nil
}
