package models

import "time"

// AnomalyMethod identifies one detection pass.
type AnomalyMethod string

const (
	AnomalyZScore        AnomalyMethod = "zscore"
	AnomalyIQR           AnomalyMethod = "iqr"
	AnomalyMovingAverage AnomalyMethod = "moving_average"
	AnomalyRateOfChange  AnomalyMethod = "rate_of_change"
	AnomalyPattern       AnomalyMethod = "pattern"
)

// AnomalySeverity ranks detected anomalies.
type AnomalySeverity string

const (
	SeverityLow      AnomalySeverity = "low"
	SeverityMedium   AnomalySeverity = "medium"
	SeverityHigh     AnomalySeverity = "high"
	SeverityCritical AnomalySeverity = "critical"
)

// Rank returns the ordering weight of a severity, higher is worse.
func (s AnomalySeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Sensitivity selects the z-score threshold for detection.
type Sensitivity string

const (
	SensitivityHigh   Sensitivity = "high"   // threshold 2.0
	SensitivityMedium Sensitivity = "medium" // threshold 2.5
	SensitivityLow    Sensitivity = "low"    // threshold 3.0
)

// Threshold returns the z-score cutoff for the sensitivity level.
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityHigh:
		return 2.0
	case SensitivityLow:
		return 3.0
	default:
		return 2.5
	}
}

// Anomaly is one flagged series point.
type Anomaly struct {
	Index     int               `json:"index"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Score     float64           `json:"score"`
	Severity  AnomalySeverity   `json:"severity"`
	Method    AnomalyMethod     `json:"method"`
	Context   map[string]string `json:"context,omitzero"`
}

// AnomalyReport is the merged, ranked output of all detection passes over
// one series. Reports are derived data and never persisted as mutable state.
type AnomalyReport struct {
	EntityType  string      `json:"entity_type,omitzero"`
	EntityID    string      `json:"entity_id,omitzero"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Anomalies   []Anomaly   `json:"anomalies"`
	// Alerts holds the subset with severity >= high, surfaced for alerting.
	Alerts      []Anomaly `json:"alerts,omitzero"`
	TotalPoints int       `json:"total_points"`
	AnomalyRate float64   `json:"anomaly_rate"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AnomalyRequest asks for detection over a stored series.
type AnomalyRequest struct {
	EntityType   string      `json:"entity_type"`
	EntityID     string      `json:"entity_id"`
	LookbackDays int         `json:"lookback_days"`
	Granularity  Granularity `json:"granularity"`
	Sensitivity  Sensitivity `json:"sensitivity,omitzero"`
}
