package analytics

import (
	"github.com/meterwise/costops/internal/models"
)

const (
	minSeasonalACF   = 0.3
	minDecomposeSize = 4
)

// Decompose splits a series into trend, seasonal, and residual components
// using a centered moving-average trend and autocorrelation-based period
// detection. Series shorter than minDecomposeSize get a flat decomposition
// with everything assigned to the trend.
func Decompose(values []float64) *models.Decomposition {
	n := len(values)
	original := make([]float64, n)
	copy(original, values)

	if n < minDecomposeSize {
		trend := make([]float64, n)
		copy(trend, values)
		return &models.Decomposition{
			Original: original,
			Trend:    trend,
			Seasonal: make([]float64, n),
			Residual: make([]float64, n),
		}
	}

	window := trendWindow(n)
	trend := movingAverageTrend(values, window)

	detrended := make([]float64, n)
	for i := range values {
		detrended[i] = values[i] - trend[i]
	}

	period := detectPeriod(detrended)
	seasonal := make([]float64, n)
	if period > 1 {
		seasonal = seasonalMeans(detrended, period)
	}

	residual := make([]float64, n)
	for i := range values {
		residual[i] = detrended[i] - seasonal[i]
	}

	return &models.Decomposition{
		Original:       original,
		Trend:          trend,
		Seasonal:       seasonal,
		Residual:       residual,
		HasSeasonality: period > 1,
		SeasonalPeriod: period,
	}
}

// trendWindow clamps n/4 to [3, 21] and forces it odd so the moving
// average stays centered.
func trendWindow(n int) int {
	w := n / 4
	if w < 3 {
		w = 3
	}
	if w > 21 {
		w = 21
	}
	if w%2 == 0 {
		w++
	}
	return w
}

// movingAverageTrend computes a centered moving average, shrinking the
// window near the edges instead of padding.
func movingAverageTrend(values []float64, window int) []float64 {
	n := len(values)
	half := window / 2
	trend := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > n-1 {
			hi = n - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		trend[i] = sum / float64(hi-lo+1)
	}
	return trend
}

// detectPeriod scans candidate lags 2..n/2 over the detrended series and
// returns the lag with the strongest autocorrelation, provided it clears
// the significance floor. Returns 0 when no period is significant.
func detectPeriod(detrended []float64) int {
	n := len(detrended)
	best := 0
	bestACF := minSeasonalACF
	for lag := 2; lag <= n/2; lag++ {
		acf := autocorrelation(detrended, lag)
		if acf > bestACF {
			bestACF = acf
			best = lag
		}
	}
	return best
}

// seasonalMeans averages the detrended values at each phase of the period
// and centers the result so the seasonal component sums to zero.
func seasonalMeans(detrended []float64, period int) []float64 {
	n := len(detrended)
	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range detrended {
		phase := i % period
		sums[phase] += v
		counts[phase]++
	}

	means := make([]float64, period)
	total := 0.0
	for p := range sums {
		if counts[p] > 0 {
			means[p] = sums[p] / float64(counts[p])
		}
		total += means[p]
	}
	center := total / float64(period)

	seasonal := make([]float64, n)
	for i := range seasonal {
		seasonal[i] = means[i%period] - center
	}
	return seasonal
}
