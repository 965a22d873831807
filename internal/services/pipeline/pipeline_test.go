package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"
	"github.com/meterwise/costops/internal/services/costing"
	"github.com/meterwise/costops/internal/services/dedup"
	"github.com/meterwise/costops/internal/services/enrich"
	"github.com/meterwise/costops/internal/services/normalizer"
	"github.com/meterwise/costops/internal/services/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticPricing struct {
	table *models.PricingTable
}

func (s staticPricing) Lookup(_ context.Context, _, _ string, _ time.Time, _ string) (*models.PricingTable, error) {
	return s.table, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *storage.CostStore) {
	t.Helper()

	// The busy timeout lets concurrent workers serialize on the single
	// sqlite writer instead of failing.
	db, err := storage.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(t.TempDir(), "pipeline.db") + "?_busy_timeout=5000",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	store := storage.NewCostStore(db.DB)
	calc := costing.New(staticPricing{table: &models.PricingTable{
		Provider:              "openai",
		ModelID:               "gpt-4o",
		InputPricePerMillion:  money.FromFloat64(10),
		OutputPricePerMillion: money.FromFloat64(30),
		Currency:              "USD",
	}}, nil, "")

	pipe := New(
		normalizer.New(10),
		dedup.NewMemoryCache(1024, time.Hour),
		enrich.New(nil, ""),
		calc,
		store,
		nil,
	)
	return pipe, store
}

func usageEvent(requestID string, ts time.Time) models.IngestEvent {
	return models.IngestEvent{
		Source:    models.SourceDirectAPI,
		RequestID: requestID,
		Payload: map[string]any{
			"provider":      "openai",
			"model":         "gpt-4o",
			"request_id":    requestID,
			"timestamp":     ts.Format(time.RFC3339),
			"input_tokens":  1000,
			"output_tokens": 500,
			"total_tokens":  1500,
		},
		ReceivedAt: ts,
	}
}

func TestWorkerStop(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("shutdown with an idle pool leaves no trace", func(t *testing.T) {
		pipe, store := newTestPipeline(t)
		w := NewWorker(pipe, 32, 64)

		w.Stop()

		letters, err := store.DeadLetters(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, letters, "shutdown must not fabricate dead-letter rows")
		assert.Equal(t, Stats{}, pipe.Stats())
	})

	t.Run("stop drains every buffered event", func(t *testing.T) {
		pipe, store := newTestPipeline(t)
		w := NewWorker(pipe, 2, 64)

		const n = 20
		for i := 0; i < n; i++ {
			require.True(t, w.Submit(usageEvent("req-"+strconv.Itoa(i), base.Add(time.Duration(i)*time.Second))))
		}
		w.Stop()

		records, err := store.Query(ctx, storage.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, records, n, "buffered events must be processed, not dropped")
		assert.EqualValues(t, n, pipe.Stats().Stored)
	})

	t.Run("submit after stop is rejected", func(t *testing.T) {
		pipe, store := newTestPipeline(t)
		w := NewWorker(pipe, 2, 8)
		w.Stop()

		assert.False(t, w.Submit(usageEvent("req-late", base)))

		records, err := store.Query(ctx, storage.QueryFilter{})
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		pipe, _ := newTestPipeline(t)
		w := NewWorker(pipe, 2, 8)
		w.Stop()
		w.Stop()
	})
}

func TestPipelineIdempotence(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	t.Run("identical submissions store exactly one record", func(t *testing.T) {
		pipe, store := newTestPipeline(t)
		w := NewWorker(pipe, 4, 16)

		const n = 8
		for i := 0; i < n; i++ {
			require.True(t, w.Submit(usageEvent("req-dup", base)))
		}
		w.Stop()

		records, err := store.Query(ctx, storage.QueryFilter{})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "openai", records[0].Provider)

		stats := pipe.Stats()
		assert.EqualValues(t, 1, stats.Stored)
		assert.EqualValues(t, n-1, stats.Duplicates)
	})

	t.Run("a re-delivered event is reported as a duplicate", func(t *testing.T) {
		pipe, _ := newTestPipeline(t)
		event := usageEvent("req-once", base)

		first, err := pipe.Process(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, first.Outcome)

		second, err := pipe.Process(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, second.Outcome)
	})
}
