package models

import (
	"time"

	"github.com/meterwise/costops/internal/money"
)

// Granularity is the bucket width for cost time series.
type Granularity string

const (
	GranularityHourly  Granularity = "hourly"
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Truncate returns the start of the bucket containing ts.
func (g Granularity) Truncate(ts time.Time) time.Time {
	ts = ts.UTC()
	switch g {
	case GranularityHourly:
		return ts.Truncate(time.Hour)
	case GranularityWeekly:
		day := ts.Truncate(24 * time.Hour)
		// Buckets start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonthly:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return ts.Truncate(24 * time.Hour)
	}
}

// Next returns the start of the bucket after start.
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case GranularityHourly:
		return start.Add(time.Hour)
	case GranularityWeekly:
		return start.AddDate(0, 0, 7)
	case GranularityMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityHourly, GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// TimeSeriesPoint is one contiguous aggregation bucket of cost records.
type TimeSeriesPoint struct {
	PeriodStart  time.Time    `json:"period_start"`
	PeriodEnd    time.Time    `json:"period_end"`
	TotalCost    money.Amount `json:"total_cost"`
	TotalTokens  int64        `json:"total_tokens"`
	RequestCount int64        `json:"request_count"`
}

// SeriesValues extracts the cost values of a series as floats for the
// statistical layer.
func SeriesValues(points []TimeSeriesPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.TotalCost.Float64()
	}
	return values
}

// Decomposition splits a cost series into trend, seasonal and residual
// components. It is transient and recomputed per request.
type Decomposition struct {
	Original       []float64 `json:"original"`
	Trend          []float64 `json:"trend"`
	Seasonal       []float64 `json:"seasonal"`
	Residual       []float64 `json:"residual"`
	HasSeasonality bool      `json:"has_seasonality"`
	SeasonalPeriod int       `json:"seasonal_period,omitzero"`
}
