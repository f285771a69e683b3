// Package statecache provides a short-TTL read-through cache for filter
// dropdown option lists. It is a performance optimization only and is never
// consulted for authorization decisions.
package statecache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultTTL bounds how stale a dropdown option list may be.
const DefaultTTL = 60 * time.Second

const redisBreakerDuration = 30 * time.Second

// Loader fetches the option list from the source of truth.
type Loader func(ctx context.Context) ([]string, error)

type memoryEntry struct {
	values    []string
	expiresAt time.Time
}

// Cache is a read-through cache with an optional Redis tier and an in-memory
// fallback. Redis failures trip a breaker and are never surfaced to callers.
type Cache struct {
	redisCfg config.RedisConfig
	ttl      time.Duration
	nowFn    func() time.Time

	mu           sync.Mutex
	memory       map[string]memoryEntry
	client       *redis.Client
	breakerUntil time.Time
}

// New constructs a Cache. A zero ttl uses DefaultTTL.
func New(redisCfg config.RedisConfig, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		redisCfg: redisCfg,
		ttl:      ttl,
		nowFn:    time.Now,
		memory:   make(map[string]memoryEntry),
	}
}

// Get returns the cached option list for key, loading through on a miss.
func (c *Cache) Get(ctx context.Context, key string, load Loader) ([]string, error) {
	if c == nil {
		return load(ctx)
	}
	now := c.nowFn()

	if values, ok := c.fromMemory(key, now); ok {
		return values, nil
	}
	if values, ok := c.fromRedis(ctx, key, now); ok {
		c.storeMemory(key, values, now)
		return values, nil
	}

	values, errLoad := load(ctx)
	if errLoad != nil {
		return nil, errLoad
	}
	c.storeMemory(key, values, now)
	c.storeRedis(ctx, key, values, now)
	return values, nil
}

// Invalidate drops a key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.memory, key)
	client := c.client
	c.mu.Unlock()
	if client != nil {
		if errDel := client.Del(ctx, c.redisKey(key)).Err(); errDel != nil {
			log.WithError(errDel).Debug("state cache redis invalidate failed")
		}
	}
}

func (c *Cache) fromMemory(key string, now time.Time) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.memory[key]
	if !ok || now.After(entry.expiresAt) {
		return nil, false
	}
	return entry.values, true
}

func (c *Cache) storeMemory(key string, values []string, now time.Time) {
	c.mu.Lock()
	c.memory[key] = memoryEntry{values: values, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache) fromRedis(ctx context.Context, key string, now time.Time) ([]string, bool) {
	client := c.currentRedisClient(now)
	if client == nil {
		return nil, false
	}
	raw, errGet := client.Get(ctx, c.redisKey(key)).Bytes()
	if errGet != nil {
		if errGet != redis.Nil {
			log.WithError(errGet).Debug("state cache redis get failed")
			c.tripBreaker(now)
		}
		return nil, false
	}
	var values []string
	if errUnmarshal := json.Unmarshal(raw, &values); errUnmarshal != nil {
		return nil, false
	}
	return values, true
}

func (c *Cache) storeRedis(ctx context.Context, key string, values []string, now time.Time) {
	client := c.currentRedisClient(now)
	if client == nil {
		return
	}
	raw, errMarshal := json.Marshal(values)
	if errMarshal != nil {
		return
	}
	if errSet := client.Set(ctx, c.redisKey(key), raw, c.ttl).Err(); errSet != nil {
		log.WithError(errSet).Debug("state cache redis set failed")
		c.tripBreaker(now)
	}
}

func (c *Cache) currentRedisClient(now time.Time) *redis.Client {
	if !c.redisCfg.Enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.breakerUntil) {
		return nil
	}
	if c.client == nil {
		c.client = redis.NewClient(&redis.Options{
			Addr:     c.redisCfg.Addr,
			Password: c.redisCfg.Password,
			DB:       c.redisCfg.DB,
		})
	}
	return c.client
}

func (c *Cache) tripBreaker(now time.Time) {
	c.mu.Lock()
	c.breakerUntil = now.Add(redisBreakerDuration)
	c.mu.Unlock()
}

func (c *Cache) redisKey(key string) string {
	prefix := c.redisCfg.Prefix
	if prefix == "" {
		prefix = config.DefaultRedisPrefix
	}
	return prefix + ":statecache:" + key
}
