package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompose(t *testing.T) {
	t.Run("flat series decomposes to its own trend", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			values[i] = 42.0
		}

		d := Decompose(values)
		require.Len(t, d.Trend, 30)
		for i := range values {
			assert.InDelta(t, 42.0, d.Trend[i], 1e-9)
			assert.InDelta(t, 0.0, d.Seasonal[i], 1e-9)
			assert.InDelta(t, 0.0, d.Residual[i], 1e-9)
		}
		assert.False(t, d.HasSeasonality)
	})

	t.Run("components sum back to the original series", func(t *testing.T) {
		values := make([]float64, 60)
		for i := range values {
			values[i] = 100 + 0.5*float64(i) + 10*math.Sin(2*math.Pi*float64(i)/7)
		}

		d := Decompose(values)
		for i := range values {
			sum := d.Trend[i] + d.Seasonal[i] + d.Residual[i]
			assert.InDelta(t, values[i], sum, 1e-9, "index %d", i)
		}
	})

	t.Run("detects the period of a weekly cycle", func(t *testing.T) {
		values := make([]float64, 70)
		for i := range values {
			values[i] = 100 + 25*math.Sin(2*math.Pi*float64(i)/7)
		}

		d := Decompose(values)
		assert.True(t, d.HasSeasonality)
		assert.Equal(t, 7, d.SeasonalPeriod)
	})

	t.Run("reports no seasonality for a pure trend", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			values[i] = 10 + 2*float64(i)
		}

		d := Decompose(values)
		assert.False(t, d.HasSeasonality)
	})

	t.Run("short series get a flat decomposition", func(t *testing.T) {
		d := Decompose([]float64{1, 2, 3})
		assert.Equal(t, []float64{1, 2, 3}, d.Trend)
		assert.Equal(t, []float64{0, 0, 0}, d.Seasonal)
	})
}

func TestTrendWindow(t *testing.T) {
	t.Run("clamps to the odd range 3..21", func(t *testing.T) {
		assert.Equal(t, 3, trendWindow(4))
		assert.Equal(t, 3, trendWindow(12))
		assert.Equal(t, 7, trendWindow(30))
		assert.Equal(t, 21, trendWindow(200))

		for n := 4; n < 120; n++ {
			w := trendWindow(n)
			assert.Equal(t, 1, w%2, "window for n=%d must be odd", n)
			assert.GreaterOrEqual(t, w, 3)
			assert.LessOrEqual(t, w, 21)
		}
	})
}
