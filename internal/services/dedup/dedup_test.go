package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/meterwise/costops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetric() *models.UsageMetric {
	return &models.UsageMetric{
		Source:      models.SourceDirectAPI,
		Provider:    "openai",
		ModelID:     "gpt-4o",
		RequestID:   "req-42",
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC),
		TokensTotal: 1500,
	}
}

func TestFingerprint(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, Fingerprint(sampleMetric()), Fingerprint(sampleMetric()))
	})

	t.Run("ignores sub-second timestamp jitter", func(t *testing.T) {
		a := sampleMetric()
		b := sampleMetric()
		b.Timestamp = b.Timestamp.Add(400 * time.Millisecond)
		assert.Equal(t, Fingerprint(a), Fingerprint(b))
	})

	t.Run("distinguishes different events", func(t *testing.T) {
		a := sampleMetric()
		b := sampleMetric()
		b.TokensTotal = 1501
		assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

		c := sampleMetric()
		c.RequestID = "req-43"
		assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("first insert passes, repeats are duplicates", func(t *testing.T) {
		cache := NewMemoryCache(100, time.Hour)
		fp := Fingerprint(sampleMetric())

		dup, err := cache.CheckAndInsert(ctx, fp)
		require.NoError(t, err)
		assert.False(t, dup)

		for i := 0; i < 5; i++ {
			dup, err = cache.CheckAndInsert(ctx, fp)
			require.NoError(t, err)
			assert.True(t, dup)
		}
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("expired fingerprints are re-admitted", func(t *testing.T) {
		cache := NewMemoryCache(100, 20*time.Millisecond)
		fp := Fingerprint(sampleMetric())

		dup, err := cache.CheckAndInsert(ctx, fp)
		require.NoError(t, err)
		assert.False(t, dup)

		time.Sleep(60 * time.Millisecond)

		dup, err = cache.CheckAndInsert(ctx, fp)
		require.NoError(t, err)
		assert.False(t, dup, "fingerprint older than the TTL window must be accepted again")
	})

	t.Run("exactly one concurrent submitter wins", func(t *testing.T) {
		cache := NewMemoryCache(100, time.Hour)
		fp := Fingerprint(sampleMetric())

		const submitters = 32
		var wg sync.WaitGroup
		accepted := make(chan struct{}, submitters)
		for i := 0; i < submitters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				dup, err := cache.CheckAndInsert(ctx, fp)
				assert.NoError(t, err)
				if !dup {
					accepted <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(accepted)

		assert.Len(t, accepted, 1, "concurrent deliveries of one event must yield exactly one acceptance")
	})
}

func TestNew(t *testing.T) {
	t.Run("defaults to the memory backend", func(t *testing.T) {
		cache, err := New(models.DedupConfig{Backend: "", TTLSeconds: 60, Capacity: 10})
		require.NoError(t, err)
		assert.IsType(t, &MemoryCache{}, cache)
	})

	t.Run("redis backend requires a URL", func(t *testing.T) {
		_, err := New(models.DedupConfig{Backend: models.CacheBackendRedis})
		require.Error(t, err)
	})

	t.Run("rejects unknown backends", func(t *testing.T) {
		_, err := New(models.DedupConfig{Backend: "memcached"})
		require.Error(t, err)
	})
}
