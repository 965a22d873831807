package storage

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *CostStore {
	t.Helper()

	db, err := New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(t.TempDir(), "store.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewCostStore(db.DB)
}

func costRecord(metricID string, ts time.Time, provider, costCenter string, tokens int64) models.CostRecord {
	return models.CostRecord{
		MetricID:    metricID,
		Timestamp:   ts,
		Provider:    provider,
		ModelID:     "gpt-4o",
		TokensInput: tokens / 2,
		TokensTotal: tokens,
		TotalCost:   money.FromFloat64(1.25),
		CostCenter:  costCenter,
		Region:      "us-east-1",
	}
}

func TestCostStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	t.Run("store batch appends every record", func(t *testing.T) {
		store := newTestStore(t)

		records := make([]models.CostRecord, 25)
		for i := range records {
			records[i] = costRecord("m-"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Hour), "openai", "cc-eng", 1000)
		}
		require.NoError(t, store.StoreBatch(ctx, records))
		require.NoError(t, store.StoreBatch(ctx, nil), "an empty batch is a no-op")

		got, err := store.Query(ctx, QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 25)
	})

	t.Run("query filters and orders by timestamp", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.Store(ctx, &models.CostRecord{
			MetricID: "m-late", Timestamp: base.AddDate(0, 0, 2),
			Provider: "openai", ModelID: "gpt-4o", TotalCost: money.FromFloat64(2),
		}))
		require.NoError(t, store.StoreBatch(ctx, []models.CostRecord{
			costRecord("m-a", base, "openai", "cc-eng", 1000),
			costRecord("m-b", base.Add(time.Hour), "anthropic", "cc-eng", 2000),
		}))

		got, err := store.Query(ctx, QueryFilter{Provider: "openai"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "m-a", got[0].MetricID, "ascending by timestamp")
		assert.Equal(t, "m-late", got[1].MetricID)

		got, err = store.Query(ctx, QueryFilter{End: base.AddDate(0, 0, 1)})
		require.NoError(t, err)
		assert.Len(t, got, 2, "end bound is exclusive")
	})

	t.Run("trailing volume sums the last thirty days for one cost center", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.StoreBatch(ctx, []models.CostRecord{
			costRecord("m-1", base.AddDate(0, 0, -5), "openai", "cc-eng", 1000),
			costRecord("m-2", base.AddDate(0, 0, -10), "openai", "cc-eng", 2500),
			costRecord("m-3", base.AddDate(0, 0, -40), "openai", "cc-eng", 9000), // outside window
			costRecord("m-4", base.AddDate(0, 0, -5), "anthropic", "cc-eng", 700),
			costRecord("m-5", base.AddDate(0, 0, -5), "openai", "cc-ml", 800),
		}))

		volume, err := store.TrailingTokenVolume(ctx, "cc-eng", "openai", base)
		require.NoError(t, err)
		assert.EqualValues(t, 3500, volume)

		volume, err = store.TrailingTokenVolume(ctx, "cc-none", "openai", base)
		require.NoError(t, err)
		assert.Zero(t, volume, "no rows sums to zero, not an error")
	})

	t.Run("dead letters come back newest first", func(t *testing.T) {
		store := newTestStore(t)

		for i := 0; i < 3; i++ {
			require.NoError(t, store.DeadLetter(ctx, &models.DeadLetterEvent{
				Source: models.SourceDirectAPI,
				Reason: "validation",
				Detail: "detail " + strconv.Itoa(i),
			}))
			time.Sleep(5 * time.Millisecond)
		}

		letters, err := store.DeadLetters(ctx, 2)
		require.NoError(t, err)
		require.Len(t, letters, 2)
		assert.Equal(t, "detail 2", letters[0].Detail)
		assert.Equal(t, "detail 1", letters[1].Detail)
	})
}
