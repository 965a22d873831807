package analytics

import (
	"testing"

	"github.com/meterwise/costops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	d := NewAnomalyDetector()

	t.Run("a massive spike merges into one critical anomaly", func(t *testing.T) {
		// Alternating baseline with one point far outside every fence.
		values := make([]float64, 30)
		for i := range values {
			if i%2 == 0 {
				values[i] = 99
			} else {
				values[i] = 101
			}
		}
		values[20] = 150

		report, err := d.Detect(dailySeries(values), models.SensitivityMedium)
		require.NoError(t, err)

		require.Len(t, report.Anomalies, 1, "all passes must merge to a single index")
		spike := report.Anomalies[0]
		assert.Equal(t, 20, spike.Index)
		assert.Equal(t, models.SeverityCritical, spike.Severity)

		require.Len(t, report.Alerts, 1)
		assert.Equal(t, 20, report.Alerts[0].Index)
		assert.InDelta(t, 1.0/30.0, report.AnomalyRate, 1e-9)
	})

	t.Run("a clean series yields no anomalies", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			values[i] = 100 + float64(i%3)
		}

		report, err := d.Detect(dailySeries(values), models.SensitivityMedium)
		require.NoError(t, err)
		assert.Empty(t, report.Anomalies)
		assert.Empty(t, report.Alerts)
	})

	t.Run("sensitivity changes the flagging threshold", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			if i%2 == 0 {
				values[i] = 98
			} else {
				values[i] = 102
			}
		}
		values[30] = 112 // modest bump

		high, err := d.Detect(dailySeries(values), models.SensitivityHigh)
		require.NoError(t, err)
		low, err := d.Detect(dailySeries(values), models.SensitivityLow)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, len(high.Anomalies), len(low.Anomalies),
			"high sensitivity must flag at least as much as low")
	})

	t.Run("cost recorded against zero tokens is flagged", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			values[i] = 100 + float64(i%2)
		}

		points := dailySeries(values)
		points[7].TotalTokens = 0

		report, err := d.Detect(points, models.SensitivityMedium)
		require.NoError(t, err)

		var flagged *models.Anomaly
		for i := range report.Anomalies {
			if report.Anomalies[i].Index == 7 {
				flagged = &report.Anomalies[i]
			}
		}
		require.NotNil(t, flagged, "nonzero cost with zero tokens must be flagged")
		assert.Equal(t, models.AnomalyPattern, flagged.Method)
		assert.Equal(t, models.SeverityCritical, flagged.Severity)
	})

	t.Run("sustained spike runs are flagged point by point", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			values[i] = 100 + float64(i%2)
		}
		// Three consecutive points well above 1.5x the 75th percentile.
		values[15], values[16], values[17] = 170, 175, 172

		report, err := d.Detect(dailySeries(values), models.SensitivityMedium)
		require.NoError(t, err)

		flagged := map[int]bool{}
		for _, a := range report.Anomalies {
			flagged[a.Index] = true
		}
		assert.True(t, flagged[15] && flagged[16] && flagged[17],
			"every point of the run should be reported, got %v", report.Anomalies)
	})

	t.Run("detector order does not change the report", func(t *testing.T) {
		values := make([]float64, 30)
		for i := range values {
			if i%2 == 0 {
				values[i] = 99
			} else {
				values[i] = 101
			}
		}
		values[20] = 150

		points := dailySeries(values)
		points[7].TotalTokens = 0

		forward, err := d.Detect(points, models.SensitivityMedium)
		require.NoError(t, err)

		reversed := &AnomalyDetector{detectors: []detector{
			patternDetector{},
			rateOfChangeDetector{},
			movingAverageDetector{},
			iqrDetector{},
			zScoreDetector{},
		}}
		backward, err := reversed.Detect(points, models.SensitivityMedium)
		require.NoError(t, err)

		assert.Equal(t, forward.Anomalies, backward.Anomalies)
		assert.Equal(t, forward.Alerts, backward.Alerts)
	})

	t.Run("rejects series that are too short", func(t *testing.T) {
		_, err := d.Detect(dailySeries(repeated(5, 9)), models.SensitivityMedium)
		require.Error(t, err)
		assert.True(t, models.IsType(err, models.ErrorTypeInsufficientData))
	})

	t.Run("report is ranked by severity", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			if i%2 == 0 {
				values[i] = 99
			} else {
				values[i] = 101
			}
		}
		values[10] = 113
		values[30] = 220

		report, err := d.Detect(dailySeries(values), models.SensitivityMedium)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(report.Anomalies), 2)

		for i := 1; i < len(report.Anomalies); i++ {
			assert.GreaterOrEqual(t,
				report.Anomalies[i-1].Severity.Rank(),
				report.Anomalies[i].Severity.Rank(),
				"anomalies must be ordered most severe first")
		}

		byIdx := map[int]models.Anomaly{}
		for _, a := range report.Anomalies {
			byIdx[a.Index] = a
		}
		require.Contains(t, byIdx, 30)
		assert.Equal(t, models.SeverityCritical, byIdx[30].Severity)
	})
}

func TestSeverityFor(t *testing.T) {
	threshold := 2.5

	cases := []struct {
		score float64
		want  models.AnomalySeverity
	}{
		{2.6, models.SeverityLow},
		{3.1, models.SeverityMedium},   // ratio 1.24
		{4.0, models.SeverityHigh},     // ratio 1.6
		{5.5, models.SeverityCritical}, // ratio 2.2
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, severityFor(tc.score, threshold), "score %.1f", tc.score)
	}
}
