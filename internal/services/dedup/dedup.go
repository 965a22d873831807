// Package dedup suppresses re-delivered usage events with a time-windowed
// fingerprint cache. The check-and-insert is atomic per fingerprint so two
// concurrent deliveries of the same event cannot both pass.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/meterwise/costops/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache is the fingerprint cache contract. CheckAndInsert returns true when
// the fingerprint was already present (a duplicate); otherwise it inserts
// the fingerprint and returns false, as one atomic operation.
type Cache interface {
	CheckAndInsert(ctx context.Context, fingerprint string) (bool, error)
}

// Fingerprint computes the deterministic hash that identifies one logical
// usage event: source, model, provider, second-rounded timestamp, total
// tokens and the request id when present.
func Fingerprint(m *models.UsageMetric) string {
	h := sha256.New()
	h.Write([]byte(m.Source))
	h.Write([]byte{0})
	h.Write([]byte(m.ModelID))
	h.Write([]byte{0})
	h.Write([]byte(m.Provider))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Timestamp.Truncate(time.Second).Unix(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.TokensTotal, 10)))
	h.Write([]byte{0})
	h.Write([]byte(m.RequestID))
	return hex.EncodeToString(h.Sum(nil))
}

// New builds the cache backend selected by config.
func New(cfg models.DedupConfig) (Cache, error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	switch cfg.Backend {
	case models.CacheBackendMemory, "":
		fiberlog.Debugf("Dedup: using in-memory cache capacity=%d ttl=%s", cfg.Capacity, ttl)
		return NewMemoryCache(cfg.Capacity, ttl), nil

	case models.CacheBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL not set for redis dedup backend")
		}
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL for dedup backend: %w", err)
		}
		fiberlog.Debugf("Dedup: using redis cache ttl=%s", ttl)
		return NewRedisCache(redis.NewClient(opts), ttl), nil

	default:
		return nil, fmt.Errorf("unsupported dedup backend: %s (supported: memory, redis)", cfg.Backend)
	}
}

// MemoryCache is an expiring LRU fingerprint set. The mutex makes the
// lookup-and-insert a single atomic operation; the LRU's own locking only
// covers individual calls.
type MemoryCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, struct{}]
}

// NewMemoryCache creates an in-process cache holding up to capacity
// fingerprints for ttl.
func NewMemoryCache(capacity int, ttl time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 100_000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, struct{}](capacity, nil, ttl),
	}
}

func (c *MemoryCache) CheckAndInsert(_ context.Context, fingerprint string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.lru.Get(fingerprint); ok {
		return true, nil
	}
	c.lru.Add(fingerprint, struct{}{})
	return false, nil
}

// Len returns the number of live fingerprints; used by tests and health
// reporting.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// RedisCache shares the fingerprint window across replicas. SETNX with a
// TTL gives the atomic upsert-if-absent the contract requires.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) CheckAndInsert(ctx context.Context, fingerprint string) (bool, error) {
	inserted, err := c.client.SetNX(ctx, "costops:dedup:"+fingerprint, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup cache check failed: %w", err)
	}
	return !inserted, nil
}
