package oauth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces token keys in a shared Redis.
const DefaultKeyPrefix = "shiprate:token:"

// RedisCache is a TokenCache backed by Redis, letting several replicas share
// carrier tokens. Expiry is delegated to Redis key TTLs.
type RedisCache struct {
	client redis.UniversalClient
	prefix string

	// OnError, when set, receives Redis failures other than a missing key.
	OnError func(err error)
}

// NewRedisCache creates a Redis-backed token cache. An empty prefix uses
// DefaultKeyPrefix.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(clientID string) string {
	return c.prefix + clientID
}

// TryGetToken implements TokenCache. Redis errors are reported as a miss so
// the caller falls back to fetching a fresh token.
func (c *RedisCache) TryGetToken(ctx context.Context, clientID string) (string, bool) {
	token, err := c.client.Get(ctx, c.key(clientID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && c.OnError != nil {
			c.OnError(err)
		}
		return "", false
	}
	return token, token != ""
}

// AddToken implements TokenCache. Write failures are passed to OnError as
// well as returned.
func (c *RedisCache) AddToken(ctx context.Context, clientID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(clientID), token, ttl).Err(); err != nil {
		if c.OnError != nil {
			c.OnError(err)
		}
		return err
	}
	return nil
}

var _ TokenCache = (*RedisCache)(nil)
