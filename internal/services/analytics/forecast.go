package analytics

import (
	"math"
	"time"

	"github.com/meterwise/costops/internal/models"
)

// Variance-share cutoffs for rule-based method selection.
const (
	strongComponentShare   = 0.6
	moderateComponentShare = 0.3
	weakComponentShare     = 0.2
	seasonalDominantShare  = 0.5
)

const defaultConfidenceLevel = 0.95

// Forecaster selects a strategy from the decomposition of a series and
// produces point forecasts with confidence intervals.
type Forecaster struct {
	cfg models.AnalyticsConfig
}

func NewForecaster(cfg models.AnalyticsConfig) *Forecaster {
	return &Forecaster{cfg: cfg}
}

// Forecast runs the full chain over an already-bucketed series: decompose,
// select a method, project the horizon, and attach intervals derived from
// one-step-ahead errors over the trailing third of the history.
func (f *Forecaster) Forecast(points []models.TimeSeriesPoint, horizon int, confidence float64) (*models.ForecastResult, error) {
	if horizon <= 0 {
		return nil, models.NewValidationError("forecast horizon must be positive", nil)
	}
	if confidence == 0 {
		confidence = defaultConfidenceLevel
	}

	values := models.SeriesValues(points)
	if len(values) < f.cfg.MinForecastPoints {
		return nil, models.NewInsufficientDataError(len(values), f.cfg.MinForecastPoints)
	}

	decomp := Decompose(values)
	strat := f.selectStrategy(decomp)
	forecasts := strat.forecast(values, decomp, horizon)

	oneStepErrors, mape := f.holdoutErrors(strat, values, decomp)
	intervals := confidenceIntervals(forecasts, oneStepErrors, confidence)

	trend, err := AnalyzeTrend(values)
	if err != nil {
		return nil, err
	}

	granularity := seriesGranularity(points)
	lastStart := points[len(points)-1].PeriodStart
	forecastPoints := make([]models.ForecastPoint, horizon)
	for h := 0; h < horizon; h++ {
		lastStart = granularity.Next(lastStart)
		forecastPoints[h] = models.ForecastPoint{
			PeriodStart: lastStart,
			Value:       forecasts[h],
		}
	}

	accuracy := 0.0
	if mape >= 0 {
		accuracy = math.Max(0, 100-mape)
	}

	return &models.ForecastResult{
		Method:              strat.method(),
		Horizon:             horizon,
		Points:              forecastPoints,
		Intervals:           intervals,
		ConfidenceLevel:     confidence,
		Trend:               trend.Direction,
		SeasonalityDetected: decomp.HasSeasonality,
		AccuracyEstimate:    accuracy,
		GeneratedAt:         time.Now().UTC(),
	}, nil
}

// selectStrategy applies the variance-share rules: a strong trend with weak
// seasonality gets the linear extrapolation, trend plus seasonality gets
// Holt-Winters, dominant seasonality alone gets the seasonal projection, a
// noise-dominated series gets exponential smoothing, and anything left over
// falls back to the trailing moving average.
func (f *Forecaster) selectStrategy(decomp *models.Decomposition) strategy {
	trendShare, seasonalShare, residualShare := varianceShares(decomp)

	switch {
	case trendShare >= strongComponentShare && seasonalShare < weakComponentShare:
		return linearTrendStrategy{}
	case trendShare >= moderateComponentShare && seasonalShare >= weakComponentShare && decomp.HasSeasonality:
		return holtWintersStrategy{cfg: f.cfg.HoltWinters}
	case seasonalShare >= seasonalDominantShare && decomp.HasSeasonality:
		return seasonalStrategy{}
	case residualShare >= strongComponentShare:
		return exponentialSmoothingStrategy{alpha: f.cfg.HoltWinters.Alpha}
	default:
		return movingAverageStrategy{}
	}
}

// varianceShares splits the series variance across the three components.
// A flat series has no variance anywhere and reports all-zero shares.
func varianceShares(decomp *models.Decomposition) (trend, seasonal, residual float64) {
	vt := variance(decomp.Trend)
	vs := variance(decomp.Seasonal)
	vr := variance(decomp.Residual)
	total := vt + vs + vr
	if total < 1e-12 {
		return 0, 0, 0
	}
	return vt / total, vs / total, vr / total
}

// holdoutErrors replays one-step-ahead predictions over the trailing third
// of the history and returns the raw errors plus the MAPE in percent (or -1
// when no point was evaluable).
func (f *Forecaster) holdoutErrors(strat strategy, values []float64, decomp *models.Decomposition) ([]float64, float64) {
	n := len(values)
	start := n - n/3
	if start < 2 {
		start = 2
	}

	var errs []float64
	var apeSum float64
	var apeCount int
	for t := start; t < n; t++ {
		predicted, ok := strat.predictOneStep(values, decomp, t)
		if !ok {
			continue
		}
		errs = append(errs, values[t]-predicted)
		if math.Abs(values[t]) > 1e-12 {
			apeSum += math.Abs(values[t]-predicted) / math.Abs(values[t]) * 100
			apeCount++
		}
	}

	mape := -1.0
	if apeCount > 0 {
		mape = apeSum / float64(apeCount)
	} else if len(errs) > 0 {
		// All-zero actuals with predictions to match count as perfect.
		mape = 0
		for _, e := range errs {
			if math.Abs(e) > 1e-9 {
				mape = -1
				break
			}
		}
	}
	return errs, mape
}

// confidenceIntervals widens the one-step error spread by the square root
// of the forecast step.
func confidenceIntervals(forecasts, oneStepErrors []float64, confidence float64) []models.ConfidenceInterval {
	z := zScoreFor(confidence)
	sd := stdDev(oneStepErrors)

	intervals := make([]models.ConfidenceInterval, len(forecasts))
	for h, f := range forecasts {
		halfWidth := z * sd * math.Sqrt(float64(h+1))
		intervals[h] = models.ConfidenceInterval{
			Lower: clampNonNegative(f - halfWidth),
			Upper: f + halfWidth,
		}
	}
	return intervals
}

// seriesGranularity infers the bucket width from the first point; callers
// always build contiguous series so any point would do.
func seriesGranularity(points []models.TimeSeriesPoint) models.Granularity {
	if len(points) == 0 {
		return models.GranularityDaily
	}
	switch points[0].PeriodEnd.Sub(points[0].PeriodStart) {
	case time.Hour:
		return models.GranularityHourly
	case 7 * 24 * time.Hour:
		return models.GranularityWeekly
	case 24 * time.Hour:
		return models.GranularityDaily
	default:
		if points[0].PeriodEnd.Sub(points[0].PeriodStart) > 7*24*time.Hour {
			return models.GranularityMonthly
		}
		return models.GranularityDaily
	}
}
