package models

import (
	"time"

	"github.com/meterwise/costops/internal/money"
)

// Dimension is a grouping axis for cost aggregation.
type Dimension string

const (
	DimProvider   Dimension = "provider"
	DimModel      Dimension = "model"
	DimProject    Dimension = "project"
	DimCostCenter Dimension = "cost_center"
	DimTeam       Dimension = "team"
	DimRegion     Dimension = "region"
	DimDate       Dimension = "date"
	DimHour       Dimension = "hour"
)

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimProvider, DimModel, DimProject, DimCostCenter, DimTeam, DimRegion, DimDate, DimHour:
		return true
	}
	return false
}

// AggMetric names a requested aggregate.
type AggMetric string

const (
	MetricTotalCost       AggMetric = "total_cost"
	MetricAvgCost         AggMetric = "avg_cost"
	MetricTotalTokens     AggMetric = "total_tokens"
	MetricTokensInput     AggMetric = "tokens_input"
	MetricTokensOutput    AggMetric = "tokens_output"
	MetricRequestCount    AggMetric = "request_count"
	MetricCostPer1kTokens AggMetric = "cost_per_1k_tokens"
	MetricCostPerRequest  AggMetric = "cost_per_request"
)

// AggregationRequest is a point query over stored cost records.
type AggregationRequest struct {
	Dimensions []Dimension       `json:"dimensions"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	Filters    map[string]string `json:"filters,omitzero"`
	Metrics    []AggMetric       `json:"metrics,omitzero"`
	SortBy     AggMetric         `json:"sort_by,omitzero"`
	Limit      int               `json:"limit,omitzero"`
}

// AggregationRow is one group's aggregates. Derived ratios are pointers and
// stay nil when the denominator is missing or zero.
type AggregationRow struct {
	Key map[string]string `json:"key"`

	TotalCost    money.Amount `json:"total_cost"`
	TotalTokens  int64        `json:"total_tokens"`
	TokensInput  int64        `json:"tokens_input"`
	TokensOutput int64        `json:"tokens_output"`
	RequestCount int64        `json:"request_count"`

	AvgCost         *float64 `json:"avg_cost,omitzero"`
	CostPer1kTokens *float64 `json:"cost_per_1k_tokens,omitzero"`
	CostPerRequest  *float64 `json:"cost_per_request,omitzero"`
}

// Contributor names one of the top groups by total cost.
type Contributor struct {
	Key       string       `json:"key"`
	TotalCost money.Amount `json:"total_cost"`
	Share     float64      `json:"share"`
}

// AggregationSummary carries grand totals and the top contributors.
type AggregationSummary struct {
	TotalCost       money.Amount  `json:"total_cost"`
	TotalTokens     int64         `json:"total_tokens"`
	RequestCount    int64         `json:"request_count"`
	GroupCount      int           `json:"group_count"`
	TopContributors []Contributor `json:"top_contributors,omitzero"`
}

// AggregationResult is the full query response.
type AggregationResult struct {
	Rows    []AggregationRow   `json:"rows"`
	Summary AggregationSummary `json:"summary"`
}
