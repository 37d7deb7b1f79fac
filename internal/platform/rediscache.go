package platform

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-token-lab/internal/domain"
)

// RedisClient is the subset of *redis.Client this cache needs, narrowed so
// tests can substitute a fake without a live server.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache is a Cache backed by Redis, falling back to an in-process map
// on any Redis error so a cache outage degrades to "detect every time"
// instead of failing detection outright.
type RedisCache struct {
	client    RedisClient
	keyPrefix string
	logger    *slog.Logger

	fallback *memCache
}

// NewRedisCache wires a RedisCache. keyPrefix namespaces keys, e.g.
// "platform:cache:".
func NewRedisCache(client RedisClient, keyPrefix string, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	if keyPrefix == "" {
		keyPrefix = "platform:cache:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
		fallback:  newMemCache(),
	}
}

func (c *RedisCache) Get(ctx context.Context, mint string) (domain.DetectionResult, bool) {
	data, err := c.client.Get(ctx, c.keyPrefix+mint).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("platform: redis cache read failed, using fallback", "mint", mint, "error", err)
			return c.fallback.Get(ctx, mint)
		}
		return domain.DetectionResult{}, false
	}

	var result domain.DetectionResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("platform: redis cache decode failed", "mint", mint, "error", err)
		return domain.DetectionResult{}, false
	}
	return result, true
}

func (c *RedisCache) Set(ctx context.Context, mint string, result domain.DetectionResult, ttl time.Duration) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.keyPrefix+mint, data, ttl).Err(); err != nil {
		c.logger.Warn("platform: redis cache write failed, using fallback", "mint", mint, "error", err)
		c.fallback.Set(ctx, mint, result, ttl)
	}
}

// memCache is a plain in-process map cache, used as RedisCache's fallback
// and directly in tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	result  domain.DetectionResult
	expires time.Time
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]memEntry)}
}

// NewMemCache returns an in-process Cache with no external dependency, for
// tests and for the fallback path.
func NewMemCache() Cache {
	return newMemCache()
}

func (m *memCache) Get(ctx context.Context, mint string) (domain.DetectionResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[mint]
	if !ok || time.Now().After(e.expires) {
		return domain.DetectionResult{}, false
	}
	return e.result, true
}

func (m *memCache) Set(ctx context.Context, mint string, result domain.DetectionResult, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[mint] = memEntry{result: result, expires: time.Now().Add(ttl)}
}
