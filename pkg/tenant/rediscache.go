package tenant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// negativeSentinel marks a cached "no such tenant" result. It can never be
// confused with a tenant payload, which is always a JSON object.
const negativeSentinel = "-"

// redisCache shares resolution results across processes behind the same
// load balancer, so a registry lookup done by one instance warms the whole
// fleet. Redis failures degrade to cache misses; the registry stays the
// source of truth.
type redisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a Redis-backed tenant cache. Keys are namespaced
// with prefix (default "tenant:slug:").
func NewRedisCache(client *redis.Client, prefix string) Cache {
	if prefix == "" {
		prefix = "tenant:slug:"
	}
	return &redisCache{client: client, keyPrefix: prefix}
}

func (c *redisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if err != nil {
		return nil, false
	}
	if val == negativeSentinel {
		return nil, true
	}

	var t Tenant
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		// Corrupt payload: drop it and fall through to the registry.
		c.client.Del(ctx, c.keyPrefix+key)
		return nil, false
	}
	return &t, true
}

func (c *redisCache) Set(ctx context.Context, key string, t *Tenant, ttl time.Duration) {
	if t == nil {
		c.SetNegative(ctx, key, ttl)
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.keyPrefix+key, payload, ttl)
}

func (c *redisCache) SetNegative(ctx context.Context, key string, ttl time.Duration) {
	c.client.Set(ctx, c.keyPrefix+key, negativeSentinel, ttl)
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, c.keyPrefix+key)
}

func (c *redisCache) Close() error { return nil }
