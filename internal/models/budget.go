package models

import (
	"time"

	"github.com/meterwise/costops/internal/money"
)

// BudgetRiskLevel is a five-bucket classification of projected variance.
type BudgetRiskLevel string

const (
	RiskMinimal  BudgetRiskLevel = "minimal"
	RiskLow      BudgetRiskLevel = "low"
	RiskModerate BudgetRiskLevel = "moderate"
	RiskHigh     BudgetRiskLevel = "high"
	RiskSevere   BudgetRiskLevel = "severe"
)

// BudgetRequest asks for a projection of one cost center's current period.
type BudgetRequest struct {
	CostCenter  string       `json:"cost_center"`
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"`
	Budget      money.Amount `json:"budget"`
	// AsOf defaults to now; tests pin it for determinism.
	AsOf time.Time `json:"as_of,omitzero"`
}

// BudgetProjection is a derived, read-only report; each generation is a
// fresh computation over current data.
type BudgetProjection struct {
	CostCenter  string    `json:"cost_center"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	Budget      money.Amount `json:"budget"`
	SpendToDate money.Amount `json:"spend_to_date"`

	ElapsedDays   float64 `json:"elapsed_days"`
	RemainingDays float64 `json:"remaining_days"`

	// Per-strategy full-period projections.
	LinearProjection        float64 `json:"linear_projection"`
	PatternProjection       float64 `json:"pattern_projection"`
	TrendAdjustedProjection float64 `json:"trend_adjusted_projection"`

	// ProjectedTotal is the weighted combination of the three strategies.
	ProjectedTotal      float64 `json:"projected_total"`
	ProjectedVariance   float64 `json:"projected_variance"`
	VariancePercent     float64 `json:"variance_percent"`
	DailyBurnRate       float64 `json:"daily_burn_rate"`
	BudgetUtilization   float64 `json:"budget_utilization"`
	ProjectedOverBudget bool    `json:"projected_over_budget"`

	// ExhaustionDate is nil when the burn rate is not positive.
	ExhaustionDate *time.Time      `json:"exhaustion_date,omitzero"`
	RiskLevel      BudgetRiskLevel `json:"risk_level"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
