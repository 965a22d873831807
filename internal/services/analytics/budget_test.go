package analytics

import (
	"testing"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func budgetRequest(budget float64, totalDays, elapsedDays int) models.BudgetRequest {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return models.BudgetRequest{
		CostCenter:  "ml-research",
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, totalDays),
		Budget:      money.FromFloat64(budget),
		AsOf:        start.AddDate(0, 0, elapsedDays),
	}
}

func TestProject(t *testing.T) {
	p := NewBudgetProjector(testAnalyticsConfig().BudgetWeights)

	t.Run("steady burn a third into the period", func(t *testing.T) {
		// $400 spent after 10 of 30 days against a $1000 budget.
		req := budgetRequest(1000, 30, 10)
		daily := dailySeries(repeated(40, 10))

		proj, err := p.Project(req, daily, nil)
		require.NoError(t, err)

		assert.InDelta(t, 10, proj.ElapsedDays, 1e-9)
		assert.InDelta(t, 20, proj.RemainingDays, 1e-9)
		assert.InDelta(t, 40, proj.DailyBurnRate, 1e-6)
		assert.InDelta(t, 1200, proj.LinearProjection, 1e-6)
		assert.InDelta(t, 1200, proj.PatternProjection, 1e-6, "no history falls back to linear")
		assert.InDelta(t, 1200, proj.TrendAdjustedProjection, 1e-6, "flat series has zero slope")
		assert.InDelta(t, 1200, proj.ProjectedTotal, 1e-6)
		assert.InDelta(t, 200, proj.ProjectedVariance, 1e-6)
		assert.InDelta(t, 20, proj.VariancePercent, 1e-6)
		assert.Equal(t, models.RiskHigh, proj.RiskLevel, "a 20 percent overrun sits in the high bucket, not moderate")
		assert.True(t, proj.ProjectedOverBudget)
		assert.InDelta(t, 0.4, proj.BudgetUtilization, 1e-6)
	})

	t.Run("exhaustion date extends the burn rate over the remaining budget", func(t *testing.T) {
		req := budgetRequest(1000, 30, 10)
		daily := dailySeries(repeated(40, 10))

		proj, err := p.Project(req, daily, nil)
		require.NoError(t, err)

		// $600 left at $40/day is 15 more days.
		require.NotNil(t, proj.ExhaustionDate)
		want := req.AsOf.AddDate(0, 0, 15)
		assert.WithinDuration(t, want, *proj.ExhaustionDate, time.Minute)
	})

	t.Run("pattern projection follows the most similar completed period", func(t *testing.T) {
		req := budgetRequest(1000, 30, 10)
		daily := dailySeries(repeated(40, 10))

		// A front-loaded prior period: 60% of spend in the first third.
		prior := make([]float64, 30)
		for i := range prior {
			if i < 10 {
				prior[i] = 60
			} else {
				prior[i] = 20
			}
		}
		history := []HistoricalPeriod{{Daily: dailySeries(prior), Total: 1000}}

		proj, err := p.Project(req, daily, history)
		require.NoError(t, err)

		// Spend-to-date scaled by the 0.6 historical fraction.
		assert.InDelta(t, 400.0/0.6, proj.PatternProjection, 1e-6)
		assert.Less(t, proj.ProjectedTotal, 1000.0)
		assert.False(t, proj.ProjectedOverBudget)
		assert.Equal(t, models.RiskMinimal, proj.RiskLevel)
	})

	t.Run("rising spend pushes the trend-adjusted projection above linear", func(t *testing.T) {
		req := budgetRequest(5000, 30, 10)
		values := make([]float64, 10)
		for i := range values {
			values[i] = float64((i + 1) * 10) // 10, 20, ... 100
		}

		proj, err := p.Project(req, dailySeries(values), nil)
		require.NoError(t, err)

		// spend 550, burn 55/day, slope 10/day over 20 remaining days.
		assert.InDelta(t, 1650, proj.LinearProjection, 1e-6)
		assert.InDelta(t, 3750, proj.TrendAdjustedProjection, 1e-6)
		assert.Greater(t, proj.ProjectedTotal, proj.LinearProjection)
	})

	t.Run("as-of beyond the period end is clamped", func(t *testing.T) {
		req := budgetRequest(1000, 30, 35)
		daily := dailySeries(repeated(40, 30))

		proj, err := p.Project(req, daily, nil)
		require.NoError(t, err)

		assert.InDelta(t, 30, proj.ElapsedDays, 1e-9)
		assert.InDelta(t, 0, proj.RemainingDays, 1e-9)
		assert.InDelta(t, 1200, proj.ProjectedTotal, 1e-6, "a finished period projects its actual spend")
	})

	t.Run("rejects invalid requests", func(t *testing.T) {
		daily := dailySeries(repeated(40, 10))

		missing := budgetRequest(1000, 30, 10)
		missing.CostCenter = ""
		_, err := p.Project(missing, daily, nil)
		assert.True(t, models.IsType(err, models.ErrorTypeValidation))

		inverted := budgetRequest(1000, 30, 10)
		inverted.PeriodEnd = inverted.PeriodStart.AddDate(0, 0, -1)
		_, err = p.Project(inverted, daily, nil)
		assert.True(t, models.IsType(err, models.ErrorTypeValidation))

		broke := budgetRequest(0, 30, 10)
		_, err = p.Project(broke, daily, nil)
		assert.True(t, models.IsType(err, models.ErrorTypeValidation))

		tooEarly := budgetRequest(1000, 30, 0)
		_, err = p.Project(tooEarly, nil, nil)
		assert.True(t, models.IsType(err, models.ErrorTypeInsufficientData))
	})
}

func TestRiskLevel(t *testing.T) {
	cases := []struct {
		variancePct float64
		want        models.BudgetRiskLevel
	}{
		{-10, models.RiskMinimal},
		{4.9, models.RiskMinimal},
		{5, models.RiskLow},
		{9.9, models.RiskLow},
		{10, models.RiskModerate},
		{19.9, models.RiskModerate},
		{20, models.RiskHigh},
		{34.9, models.RiskHigh},
		{35, models.RiskSevere},
		{120, models.RiskSevere},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, riskLevel(tc.variancePct), "variance %.1f%%", tc.variancePct)
	}
}
