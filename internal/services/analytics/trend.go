package analytics

import (
	"math"
	"time"

	"github.com/meterwise/costops/internal/models"
)

// Normalized-slope cutoffs for the seven-bucket direction classification,
// expressed as a fraction of the series mean per step.
const (
	strongTrendRatio   = 0.15
	moderateTrendRatio = 0.08
	slightTrendRatio   = 0.03
)

const (
	significanceLevel   = 0.05
	changePointMinJump  = 0.5 // in units of series std dev
	minTrendSeriesSize  = 3
	minChangePointsSize = 8
)

// AnalyzeTrend fits an OLS line over the series, tests the slope for
// significance, classifies the direction, and locates change points.
func AnalyzeTrend(values []float64) (*models.TrendAnalysis, error) {
	if len(values) < minTrendSeriesSize {
		return nil, models.NewInsufficientDataError(len(values), minTrendSeriesSize)
	}

	slope, intercept := olsFit(values)
	tStat := slopeTStatistic(values, slope, intercept)
	pValue := 2 * (1 - normalCDF(math.Abs(tStat)))

	return &models.TrendAnalysis{
		Slope:        slope,
		Intercept:    intercept,
		TStatistic:   tStat,
		PValue:       pValue,
		Significant:  pValue < significanceLevel,
		Direction:    classifyTrend(slope, mean(values)),
		ChangePoints: changePoints(values),
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// slopeTStatistic is the slope estimate over its standard error.
func slopeTStatistic(values []float64, slope, intercept float64) float64 {
	n := len(values)
	if n < 3 {
		return 0
	}

	var sse, sxx float64
	xMean := float64(n-1) / 2
	for i, v := range values {
		fitted := intercept + slope*float64(i)
		r := v - fitted
		sse += r * r
		dx := float64(i) - xMean
		sxx += dx * dx
	}
	if sse < 1e-12 || sxx < 1e-12 {
		if slope == 0 {
			return 0
		}
		// A perfect fit with nonzero slope is unboundedly significant.
		return math.Inf(sign(slope))
	}

	se := math.Sqrt(sse / float64(n-2) / sxx)
	return slope / se
}

func sign(x float64) int {
	if x < 0 {
		return -1
	}
	return 1
}

// classifyTrend buckets the per-step slope relative to the series mean.
func classifyTrend(slope, seriesMean float64) models.TrendDirection {
	scale := math.Abs(seriesMean)
	if scale < 1e-12 {
		if slope == 0 {
			return models.TrendStable
		}
		scale = math.Abs(slope)
	}

	normalized := slope / scale
	switch {
	case normalized >= strongTrendRatio:
		return models.TrendStrongUpward
	case normalized >= moderateTrendRatio:
		return models.TrendModerateUpward
	case normalized >= slightTrendRatio:
		return models.TrendSlightUpward
	case normalized <= -strongTrendRatio:
		return models.TrendStrongDownward
	case normalized <= -moderateTrendRatio:
		return models.TrendModerateDownward
	case normalized <= -slightTrendRatio:
		return models.TrendSlightDownward
	default:
		return models.TrendStable
	}
}

// changePoints compares the OLS slopes of the half-windows on either side
// of each index and flags level jumps exceeding half the series standard
// deviation. Nearby candidates within half a window collapse to the
// strongest one.
func changePoints(values []float64) []int {
	n := len(values)
	if n < minChangePointsSize {
		return nil
	}

	window := trendWindow(n)
	half := window / 2
	if half < 2 {
		half = 2
	}

	sd := stdDev(values)
	if sd < 1e-12 {
		return nil
	}

	type candidate struct {
		index int
		jump  float64
	}
	var candidates []candidate
	for i := half; i <= n-half; i++ {
		left, _ := olsFit(values[i-half : i])
		right, _ := olsFit(values[i : i+half])
		// Slope difference projected across the half-window gives the
		// level change the jump implies.
		jump := math.Abs(right-left) * float64(half)
		if jump > changePointMinJump*sd {
			candidates = append(candidates, candidate{index: i, jump: jump})
		}
	}

	var points []int
	for _, c := range candidates {
		if len(points) > 0 && c.index-points[len(points)-1] < half {
			continue
		}
		// Within the suppression span, keep the strongest candidate.
		best := c
		for _, other := range candidates {
			if other.index > c.index && other.index-c.index < half && other.jump > best.jump {
				best = other
			}
		}
		points = append(points, best.index)
	}
	return points
}
