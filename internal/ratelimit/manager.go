package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/fieldwave/promoter-backoffice/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager selects a limiter backend and enforces rate limits. When Redis is
// configured but failing, it falls back to the in-memory limiter until the
// breaker window elapses.
type Manager struct {
	redisCfg       config.RedisConfig
	nowFn          func() time.Time
	memoryLimiter  Limiter
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redisLimiter *RedisLimiter
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(redisCfg config.RedisConfig, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		redisCfg:       redisCfg,
		nowFn:          nowFn,
		memoryLimiter:  NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// Allow checks whether the request should be allowed using the best available backend.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.nowFn()

	if m.redisCfg.Enabled {
		if result, ok := m.allowRedis(ctx, key, limit, now); ok {
			return result, nil
		}
	}
	return m.memoryLimiter.Allow(ctx, key, limit, now)
}

// Reset clears the counters for the key on every backend. The memory tier
// is always cleared because it may have counted during a Redis outage.
func (m *Manager) Reset(ctx context.Context, key string) {
	if m == nil || key == "" {
		return
	}
	now := m.nowFn()
	_ = m.memoryLimiter.Reset(ctx, key, now)

	if !m.redisCfg.Enabled {
		return
	}
	limiter := m.currentRedisLimiter(now)
	if limiter == nil {
		return
	}
	if errReset := limiter.Reset(ctx, key, now); errReset != nil {
		log.WithError(errReset).Warn("rate limit redis reset failed")
		m.tripBreaker(now)
	}
}

// allowRedis attempts a Redis-backed check; ok=false means fall back to memory.
func (m *Manager) allowRedis(ctx context.Context, key string, limit int, now time.Time) (Result, bool) {
	limiter := m.currentRedisLimiter(now)
	if limiter == nil {
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, limit, now)
	if errAllow != nil {
		log.WithError(errAllow).Warn("rate limit redis check failed, falling back to memory")
		m.tripBreaker(now)
		return Result{}, false
	}
	return result, true
}

// currentRedisLimiter returns the Redis limiter unless the breaker is open.
func (m *Manager) currentRedisLimiter(now time.Time) *RedisLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.breakerUntil) {
		return nil
	}
	if m.redisLimiter == nil {
		client := m.newRedisClient(&redis.Options{
			Addr:     m.redisCfg.Addr,
			Password: m.redisCfg.Password,
			DB:       m.redisCfg.DB,
		})
		m.redisLimiter = NewRedisLimiter(client, m.redisCfg.Prefix+":ratelimit")
	}
	return m.redisLimiter
}

// tripBreaker pauses Redis usage for the breaker duration.
func (m *Manager) tripBreaker(now time.Time) {
	m.mu.Lock()
	m.breakerUntil = now.Add(redisBreakerDuration)
	m.mu.Unlock()
}
