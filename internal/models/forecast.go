package models

import "time"

// ForecastMethod identifies a forecasting strategy.
type ForecastMethod string

const (
	ForecastLinearTrend          ForecastMethod = "linear_trend"
	ForecastHoltWinters          ForecastMethod = "holt_winters"
	ForecastSeasonal             ForecastMethod = "seasonal"
	ForecastExponentialSmoothing ForecastMethod = "exponential_smoothing"
	ForecastMovingAverage        ForecastMethod = "moving_average"
)

// TrendDirection is the seven-bucket trend classification.
type TrendDirection string

const (
	TrendStrongUpward     TrendDirection = "strong_upward"
	TrendModerateUpward   TrendDirection = "moderate_upward"
	TrendSlightUpward     TrendDirection = "slight_upward"
	TrendStable           TrendDirection = "stable"
	TrendSlightDownward   TrendDirection = "slight_downward"
	TrendModerateDownward TrendDirection = "moderate_downward"
	TrendStrongDownward   TrendDirection = "strong_downward"
)

// ForecastPoint is one projected bucket.
type ForecastPoint struct {
	PeriodStart time.Time `json:"period_start"`
	Value       float64   `json:"value"`
}

// ConfidenceInterval bounds one forecast point.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastResult is the output of one forecast run.
type ForecastResult struct {
	Method              ForecastMethod       `json:"method"`
	Horizon             int                  `json:"horizon"`
	Points              []ForecastPoint      `json:"point_forecasts"`
	Intervals           []ConfidenceInterval `json:"confidence_intervals"`
	ConfidenceLevel     float64              `json:"confidence_level"`
	Trend               TrendDirection       `json:"trend"`
	SeasonalityDetected bool                 `json:"seasonality_detected"`
	// AccuracyEstimate is 100 minus the MAPE over the trailing holdout, in
	// percent; zero when no holdout evaluation was possible.
	AccuracyEstimate float64   `json:"accuracy_estimate"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// ForecastRequest describes a time-series query for the analytics chain.
type ForecastRequest struct {
	EntityType      string      `json:"entity_type"`
	EntityID        string      `json:"entity_id"`
	LookbackDays    int         `json:"lookback_days"`
	Granularity     Granularity `json:"granularity"`
	Horizon         int         `json:"horizon"`
	ConfidenceLevel float64     `json:"confidence_level,omitzero"`
}

// TrendAnalysis is the output of the trend detector.
type TrendAnalysis struct {
	Slope       float64        `json:"slope"`
	Intercept   float64        `json:"intercept"`
	TStatistic  float64        `json:"t_statistic"`
	PValue      float64        `json:"p_value"`
	Significant bool           `json:"significant"`
	Direction   TrendDirection `json:"direction"`
	// ChangePoints are series indices where the slope jumps materially.
	ChangePoints []int     `json:"change_points,omitzero"`
	GeneratedAt  time.Time `json:"generated_at"`
}
