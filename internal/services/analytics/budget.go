package analytics

import (
	"math"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"
)

// Variance-percent cutoffs for the five risk buckets.
const (
	riskMinimalBelow  = 5.0
	riskLowBelow      = 10.0
	riskModerateBelow = 20.0
	riskHighBelow     = 35.0
)

const budgetAlertUtilization = 0.8

// HistoricalPeriod is a completed budget period used for pattern matching.
type HistoricalPeriod struct {
	Daily []models.TimeSeriesPoint
	Total float64
}

// BudgetProjector combines three projection strategies with configured
// weights into a single end-of-period estimate.
type BudgetProjector struct {
	weights models.BudgetWeights
}

func NewBudgetProjector(weights models.BudgetWeights) *BudgetProjector {
	return &BudgetProjector{weights: weights}
}

// Project estimates end-of-period spend for one cost center from the daily
// actuals of the current period plus completed historical periods.
func (p *BudgetProjector) Project(req models.BudgetRequest, daily []models.TimeSeriesPoint, history []HistoricalPeriod) (*models.BudgetProjection, error) {
	if req.CostCenter == "" {
		return nil, models.NewValidationError("cost_center is required", nil)
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, models.NewValidationError("period_end must be after period_start", nil)
	}
	if req.Budget.Cmp(money.Zero()) <= 0 {
		return nil, models.NewValidationError("budget must be positive", nil)
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	if asOf.After(req.PeriodEnd) {
		asOf = req.PeriodEnd
	}

	totalDays := req.PeriodEnd.Sub(req.PeriodStart).Hours() / 24
	elapsedDays := asOf.Sub(req.PeriodStart).Hours() / 24
	if elapsedDays <= 0 {
		return nil, models.NewInsufficientDataError(0, 1)
	}
	remainingDays := totalDays - elapsedDays

	spend := money.Zero()
	for _, pt := range daily {
		spend = spend.Add(pt.TotalCost)
	}
	spendToDate := spend.Float64()
	burnRate := spendToDate / elapsedDays

	linear := spendToDate / elapsedDays * totalDays
	pattern := p.patternProjection(spendToDate, elapsedDays, totalDays, history, linear)
	trendAdjusted := p.trendAdjustedProjection(daily, spendToDate, burnRate, remainingDays, linear)

	projected := p.weights.Linear*linear + p.weights.Pattern*pattern + p.weights.Trend*trendAdjusted

	budget := req.Budget.Float64()
	varianceAbs := projected - budget
	variancePct := varianceAbs / budget * 100

	var exhaustion *time.Time
	if burnRate > 0 {
		remaining := budget - spendToDate
		days := remaining / burnRate
		if days < 0 {
			days = 0
		}
		t := asOf.Add(time.Duration(days * 24 * float64(time.Hour)))
		exhaustion = &t
	}

	return &models.BudgetProjection{
		CostCenter:              req.CostCenter,
		PeriodStart:             req.PeriodStart,
		PeriodEnd:               req.PeriodEnd,
		Budget:                  req.Budget,
		SpendToDate:             spend,
		ElapsedDays:             elapsedDays,
		RemainingDays:           remainingDays,
		LinearProjection:        linear,
		PatternProjection:       pattern,
		TrendAdjustedProjection: trendAdjusted,
		ProjectedTotal:          projected,
		ProjectedVariance:       varianceAbs,
		VariancePercent:         variancePct,
		DailyBurnRate:           burnRate,
		BudgetUtilization:       spendToDate / budget,
		ProjectedOverBudget:     projected > budget,
		ExhaustionDate:          exhaustion,
		RiskLevel:               riskLevel(variancePct),
		GeneratedAt:             time.Now().UTC(),
	}, nil
}

// patternProjection scales spend-to-date by the ratio observed in the most
// similar completed period, where similarity is the gap between that
// period's spend fraction at the same elapsed point and the current one.
// Without history it falls back to the linear projection.
func (p *BudgetProjector) patternProjection(spendToDate, elapsedDays, totalDays float64, history []HistoricalPeriod, fallback float64) float64 {
	if totalDays <= 0 {
		return fallback
	}
	elapsedFraction := elapsedDays / totalDays

	best := -1.0
	projection := fallback
	for _, h := range history {
		if h.Total <= 0 || len(h.Daily) == 0 {
			continue
		}
		cut := int(math.Round(elapsedFraction * float64(len(h.Daily))))
		if cut < 1 {
			cut = 1
		}
		if cut > len(h.Daily) {
			cut = len(h.Daily)
		}
		partial := 0.0
		for _, pt := range h.Daily[:cut] {
			partial += pt.TotalCost.Float64()
		}
		if partial <= 0 {
			continue
		}
		historicalFraction := partial / h.Total
		gap := math.Abs(historicalFraction - elapsedFraction)
		if best < 0 || gap < best {
			best = gap
			projection = spendToDate / historicalFraction
		}
	}
	return projection
}

// trendAdjustedProjection extends the current burn rate by the daily slope
// of the period so far, flooring each projected day at zero.
func (p *BudgetProjector) trendAdjustedProjection(daily []models.TimeSeriesPoint, spendToDate, burnRate, remainingDays float64, fallback float64) float64 {
	if remainingDays <= 0 {
		return spendToDate
	}
	if len(daily) < minTrendSeriesSize {
		return fallback
	}

	slope, _ := olsFit(models.SeriesValues(daily))
	projected := spendToDate
	for d := 1; d <= int(math.Ceil(remainingDays)); d++ {
		day := burnRate + slope*float64(d)
		if day < 0 {
			day = 0
		}
		projected += day
	}
	return projected
}

func riskLevel(variancePct float64) models.BudgetRiskLevel {
	switch {
	case variancePct < riskMinimalBelow:
		return models.RiskMinimal
	case variancePct < riskLowBelow:
		return models.RiskLow
	case variancePct < riskModerateBelow:
		return models.RiskModerate
	case variancePct < riskHighBelow:
		return models.RiskHigh
	default:
		return models.RiskSevere
	}
}
