package analytics

import (
	"math"
	"sort"
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	return math.Sqrt(variance(values))
}

// percentile returns the p-th percentile (0-100) using nearest-rank on a
// sorted copy.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// olsFit returns the slope and intercept of an ordinary-least-squares line
// over values indexed 0..n-1.
func olsFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, mean(values)
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// autocorrelation at the given lag, normalized by total variance.
func autocorrelation(values []float64, lag int) float64 {
	if lag <= 0 || lag >= len(values) {
		return 0
	}
	m := mean(values)

	var numerator, denominator float64
	for i := 0; i < len(values)-lag; i++ {
		numerator += (values[i] - m) * (values[i+lag] - m)
	}
	for _, v := range values {
		d := v - m
		denominator += d * d
	}
	if denominator < 1e-12 {
		return 0
	}
	return numerator / denominator
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// zScoreFor maps a confidence level to its two-sided z critical value.
func zScoreFor(confidence float64) float64 {
	switch int(confidence * 100) {
	case 90:
		return 1.645
	case 99:
		return 2.576
	default:
		return 1.96
	}
}
