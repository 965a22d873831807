package analytics

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/meterwise/costops/internal/models"
)

const (
	minAnomalySeriesSize = 10

	// Severity ladder, as ratios of score over the detection threshold.
	criticalRatio = 2.0
	highRatio     = 1.5
	mediumRatio   = 1.2

	iqrFenceMultiplier    = 1.5
	movingWindowSigma     = 2.0
	rateOfChangeThreshold = 0.5
	spikeRunLength        = 3
	spikeP75Multiplier    = 1.5
)

// detector is one detection pass over a series. Detectors are pure
// functions of the series and the sensitivity threshold, so the merged
// report does not depend on the order they run in.
type detector interface {
	detect(points []models.TimeSeriesPoint, values []float64, threshold float64) []models.Anomaly
}

// AnomalyDetector runs every registered pass and merges the results.
type AnomalyDetector struct {
	detectors []detector
}

func NewAnomalyDetector() *AnomalyDetector {
	return &AnomalyDetector{
		detectors: []detector{
			zScoreDetector{},
			iqrDetector{},
			movingAverageDetector{},
			rateOfChangeDetector{},
			patternDetector{},
		},
	}
}

// Detect runs all passes at the given sensitivity, dedupes flags per index
// keeping the most severe, and ranks the merged list.
func (d *AnomalyDetector) Detect(points []models.TimeSeriesPoint, sensitivity models.Sensitivity) (*models.AnomalyReport, error) {
	if len(points) < minAnomalySeriesSize {
		return nil, models.NewInsufficientDataError(len(points), minAnomalySeriesSize)
	}
	if sensitivity == "" {
		sensitivity = models.SensitivityMedium
	}

	values := models.SeriesValues(points)
	threshold := sensitivity.Threshold()

	byIndex := make(map[int]models.Anomaly)
	for _, det := range d.detectors {
		for _, a := range det.detect(points, values, threshold) {
			existing, seen := byIndex[a.Index]
			if !seen || worseThan(a, existing) {
				byIndex[a.Index] = a
			}
		}
	}

	anomalies := make([]models.Anomaly, 0, len(byIndex))
	for _, a := range byIndex {
		anomalies = append(anomalies, a)
	}
	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].Severity.Rank() != anomalies[j].Severity.Rank() {
			return anomalies[i].Severity.Rank() > anomalies[j].Severity.Rank()
		}
		return anomalies[i].Index < anomalies[j].Index
	})

	var alerts []models.Anomaly
	for _, a := range anomalies {
		if a.Severity.Rank() >= models.SeverityHigh.Rank() {
			alerts = append(alerts, a)
		}
	}

	return &models.AnomalyReport{
		Sensitivity: sensitivity,
		Anomalies:   anomalies,
		Alerts:      alerts,
		TotalPoints: len(points),
		AnomalyRate: float64(len(anomalies)) / float64(len(points)),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func worseThan(a, b models.Anomaly) bool {
	if a.Severity.Rank() != b.Severity.Rank() {
		return a.Severity.Rank() > b.Severity.Rank()
	}
	return a.Score > b.Score
}

// severityFor buckets the score by its ratio over the threshold.
func severityFor(score, threshold float64) models.AnomalySeverity {
	if threshold <= 0 {
		return models.SeverityLow
	}
	ratio := score / threshold
	switch {
	case ratio > criticalRatio:
		return models.SeverityCritical
	case ratio > highRatio:
		return models.SeverityHigh
	case ratio > mediumRatio:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func anomalyAt(points []models.TimeSeriesPoint, i int, score float64, threshold float64, method models.AnomalyMethod, context map[string]string) models.Anomaly {
	return models.Anomaly{
		Index:     i,
		Timestamp: points[i].PeriodStart,
		Value:     points[i].TotalCost.Float64(),
		Score:     score,
		Severity:  severityFor(score, threshold),
		Method:    method,
		Context:   context,
	}
}

// zScoreDetector flags points whose distance from the global mean exceeds
// the sensitivity threshold in standard deviations.
type zScoreDetector struct{}

func (zScoreDetector) detect(points []models.TimeSeriesPoint, values []float64, threshold float64) []models.Anomaly {
	m := mean(values)
	sd := stdDev(values)
	if sd < 1e-12 {
		return nil
	}

	var out []models.Anomaly
	for i, v := range values {
		score := math.Abs(v-m) / sd
		if score > threshold {
			out = append(out, anomalyAt(points, i, score, threshold, models.AnomalyZScore, nil))
		}
	}
	return out
}

// iqrDetector flags points outside the Tukey fences at 1.5x the
// interquartile range. The score is the distance past the nearer fence in
// IQR units, judged against a fixed 1.5 base so sensitivity stays with the
// z-score pass.
type iqrDetector struct{}

func (iqrDetector) detect(points []models.TimeSeriesPoint, values []float64, _ float64) []models.Anomaly {
	q1 := percentile(values, 25)
	q3 := percentile(values, 75)
	iqr := q3 - q1
	if iqr < 1e-12 {
		return nil
	}

	lower := q1 - iqrFenceMultiplier*iqr
	upper := q3 + iqrFenceMultiplier*iqr

	var out []models.Anomaly
	for i, v := range values {
		var distance float64
		switch {
		case v > upper:
			distance = v - upper
		case v < lower:
			distance = lower - v
		default:
			continue
		}
		score := iqrFenceMultiplier + distance/iqr
		out = append(out, anomalyAt(points, i, score, iqrFenceMultiplier, models.AnomalyIQR, nil))
	}
	return out
}

// movingAverageDetector compares each point against the mean and spread of
// the trailing window, catching local shifts the global passes smooth over.
type movingAverageDetector struct{}

func (movingAverageDetector) detect(points []models.TimeSeriesPoint, values []float64, _ float64) []models.Anomaly {
	n := len(values)
	window := 7
	if n/4 > window {
		window = n / 4
	}

	var out []models.Anomaly
	for i := window; i < n; i++ {
		prior := values[i-window : i]
		m := mean(prior)
		sd := stdDev(prior)
		if sd < 1e-12 {
			continue
		}
		score := math.Abs(values[i]-m) / sd
		if score > movingWindowSigma {
			out = append(out, anomalyAt(points, i, score, movingWindowSigma, models.AnomalyMovingAverage, map[string]string{
				"window": strconv.Itoa(window),
			}))
		}
	}
	return out
}

// rateOfChangeDetector flags step changes of more than half the previous
// value in either direction.
type rateOfChangeDetector struct{}

func (rateOfChangeDetector) detect(points []models.TimeSeriesPoint, values []float64, _ float64) []models.Anomaly {
	var out []models.Anomaly
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if math.Abs(prev) < 1e-12 {
			continue
		}
		change := math.Abs(values[i]-prev) / math.Abs(prev)
		if change > rateOfChangeThreshold {
			out = append(out, anomalyAt(points, i, change/rateOfChangeThreshold, 1.0, models.AnomalyRateOfChange, map[string]string{
				"change_percent": strconv.FormatFloat(change*100, 'f', 1, 64),
			}))
		}
	}
	return out
}

// patternDetector catches structural oddities the statistical passes miss:
// sustained spike runs of three or more consecutive points above 1.5x the
// 75th percentile, and nonzero cost recorded against zero tokens.
type patternDetector struct{}

func (patternDetector) detect(points []models.TimeSeriesPoint, values []float64, _ float64) []models.Anomaly {
	var out []models.Anomaly

	ceiling := spikeP75Multiplier * percentile(values, 75)
	if ceiling > 1e-12 {
		runStart := -1
		for i := 0; i <= len(values); i++ {
			if i < len(values) && values[i] > ceiling {
				if runStart < 0 {
					runStart = i
				}
				continue
			}
			if runStart >= 0 && i-runStart >= spikeRunLength {
				for j := runStart; j < i; j++ {
					score := values[j] / ceiling
					out = append(out, anomalyAt(points, j, score, 1.0, models.AnomalyPattern, map[string]string{
						"pattern":    "sustained_spike",
						"run_length": strconv.Itoa(i - runStart),
					}))
				}
			}
			runStart = -1
		}
	}

	for i, p := range points {
		if p.TotalTokens == 0 && p.TotalCost.Float64() > 0 {
			a := anomalyAt(points, i, criticalRatio+1, 1.0, models.AnomalyPattern, map[string]string{
				"pattern": "cost_without_tokens",
			})
			out = append(out, a)
		}
	}
	return out
}
