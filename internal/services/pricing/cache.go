package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CachedStore wraps a Store with an expiring read-through cache. Pricing
// rarely changes within a request burst, so cache hits keep the costing path
// free of I/O; singleflight collapses concurrent misses for the same key
// into one store call.
type CachedStore struct {
	store Store
	cache *expirable.LRU[string, *models.PricingTable]
	group singleflight.Group
}

// NewCachedStore wraps store with a TTL cache sized by config.
func NewCachedStore(store Store, cfg models.PricingCacheConfig) *CachedStore {
	cfg.ApplyDefaults()
	return &CachedStore{
		store: store,
		cache: expirable.NewLRU[string, *models.PricingTable](
			cfg.Capacity, nil, time.Duration(cfg.TTLSeconds)*time.Second),
	}
}

func (s *CachedStore) Lookup(ctx context.Context, provider, modelID string, ts time.Time, region string) (*models.PricingTable, error) {
	// Effective windows are day-granular in practice, so the cache key
	// buckets the timestamp by day.
	key := fmt.Sprintf("%s|%s|%s|%s", provider, modelID, region, ts.UTC().Format("2006-01-02"))

	if table, ok := s.cache.Get(key); ok {
		return table, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if table, ok := s.cache.Get(key); ok {
			return table, nil
		}
		table, err := s.store.Lookup(ctx, provider, modelID, ts, region)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, table)
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PricingTable), nil
}
