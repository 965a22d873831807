package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalyticsConfig() models.AnalyticsConfig {
	cfg := models.AnalyticsConfig{}
	cfg.ApplyDefaults()
	return cfg
}

func dailySeries(values []float64) []models.TimeSeriesPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		bucket := start.AddDate(0, 0, i)
		points[i] = models.TimeSeriesPoint{
			PeriodStart: bucket,
			PeriodEnd:   bucket.AddDate(0, 0, 1),
			TotalCost:   money.FromFloat64(v),
			TotalTokens: 1000,
		}
	}
	return points
}

func repeated(value float64, n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = value
	}
	return values
}

func TestForecast(t *testing.T) {
	f := NewForecaster(testAnalyticsConfig())

	t.Run("flat series forecasts its own value with tight intervals", func(t *testing.T) {
		series := dailySeries(repeated(12.5, 40))

		result, err := f.Forecast(series, 7, 0.95)
		require.NoError(t, err)

		assert.Equal(t, models.ForecastMovingAverage, result.Method)
		require.Len(t, result.Points, 7)
		require.Len(t, result.Intervals, 7)

		for h, p := range result.Points {
			assert.InDelta(t, 12.5, p.Value, 1e-9, "step %d", h)
			width := result.Intervals[h].Upper - result.Intervals[h].Lower
			assert.InDelta(t, 0.0, width, 1e-9, "interval width at step %d", h)
		}
		assert.Equal(t, models.TrendStable, result.Trend)
		assert.False(t, result.SeasonalityDetected)
		assert.InDelta(t, 100.0, result.AccuracyEstimate, 1e-9)
	})

	t.Run("refuses series below the minimum", func(t *testing.T) {
		series := dailySeries(repeated(5, 29))

		_, err := f.Forecast(series, 7, 0.95)
		require.Error(t, err)
		assert.True(t, models.IsType(err, models.ErrorTypeInsufficientData))
	})

	t.Run("strong trend selects the linear extrapolation", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			values[i] = 10 + 2*float64(i)
		}

		result, err := f.Forecast(dailySeries(values), 5, 0.95)
		require.NoError(t, err)
		assert.Equal(t, models.ForecastLinearTrend, result.Method)

		// Continuation of the line: next value ~ 10 + 2*40.
		assert.InDelta(t, 90.0, result.Points[0].Value, 2.0)
		assert.Greater(t, result.Points[4].Value, result.Points[0].Value)
	})

	t.Run("forecast periods continue the series contiguously", func(t *testing.T) {
		series := dailySeries(repeated(3, 35))

		result, err := f.Forecast(series, 3, 0.95)
		require.NoError(t, err)

		last := series[len(series)-1].PeriodStart
		for i, p := range result.Points {
			assert.Equal(t, last.AddDate(0, 0, i+1), p.PeriodStart)
		}
	})

	t.Run("intervals widen with the horizon", func(t *testing.T) {
		// Noisy enough that one-step errors are nonzero.
		values := make([]float64, 60)
		for i := range values {
			values[i] = 100 + 30*math.Sin(2*math.Pi*float64(i)/5) + 3*float64(i%3)
		}

		result, err := f.Forecast(dailySeries(values), 10, 0.95)
		require.NoError(t, err)

		first := result.Intervals[0].Upper - result.Intervals[0].Lower
		last := result.Intervals[9].Upper - result.Intervals[9].Lower
		assert.Greater(t, last, first, "uncertainty must grow with distance")
	})

	t.Run("forecasts never go negative", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			values[i] = 80 - 2.5*float64(i) // crosses zero inside the horizon
		}

		result, err := f.Forecast(dailySeries(values), 20, 0.95)
		require.NoError(t, err)
		for _, p := range result.Points {
			assert.GreaterOrEqual(t, p.Value, 0.0)
		}
	})

	t.Run("rejects a non-positive horizon", func(t *testing.T) {
		_, err := f.Forecast(dailySeries(repeated(5, 40)), 0, 0.95)
		require.Error(t, err)
	})
}

func TestSelectStrategy(t *testing.T) {
	f := NewForecaster(testAnalyticsConfig())

	t.Run("selection is deterministic for identical variance shares", func(t *testing.T) {
		values := make([]float64, 50)
		for i := range values {
			values[i] = 20 + float64(i) + 5*math.Sin(2*math.Pi*float64(i)/7)
		}

		first := f.selectStrategy(Decompose(values))
		for i := 0; i < 10; i++ {
			assert.Equal(t, first.method(), f.selectStrategy(Decompose(values)).method())
		}
	})

	t.Run("seasonal dominance selects a seasonal method", func(t *testing.T) {
		values := make([]float64, 56)
		for i := range values {
			values[i] = 100 + 40*math.Sin(2*math.Pi*float64(i)/7)
		}

		strat := f.selectStrategy(Decompose(values))
		method := strat.method()
		assert.Contains(t,
			[]models.ForecastMethod{models.ForecastSeasonal, models.ForecastHoltWinters},
			method)
	})
}

func TestZScoreFor(t *testing.T) {
	assert.InDelta(t, 1.645, zScoreFor(0.90), 1e-9)
	assert.InDelta(t, 1.96, zScoreFor(0.95), 1e-9)
	assert.InDelta(t, 2.576, zScoreFor(0.99), 1e-9)
	assert.InDelta(t, 1.96, zScoreFor(0.42), 1e-9, "unknown levels default to 95%")
}
