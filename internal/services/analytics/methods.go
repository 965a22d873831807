package analytics

import (
	"github.com/meterwise/costops/internal/models"
)

const movingAverageWindow = 30

// strategy produces point forecasts and one-step-ahead predictions for
// holdout evaluation. predictOneStep returns the prediction for index t
// given the values before t, or false when the method cannot predict yet.
type strategy interface {
	method() models.ForecastMethod
	forecast(values []float64, decomp *models.Decomposition, horizon int) []float64
	predictOneStep(values []float64, decomp *models.Decomposition, t int) (float64, bool)
}

// linearTrendStrategy extrapolates the OLS fit.
type linearTrendStrategy struct{}

func (linearTrendStrategy) method() models.ForecastMethod { return models.ForecastLinearTrend }

func (linearTrendStrategy) forecast(values []float64, _ *models.Decomposition, horizon int) []float64 {
	slope, intercept := olsFit(values)
	n := float64(len(values))
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		out[h] = clampNonNegative(intercept + slope*(n+float64(h)))
	}
	return out
}

func (linearTrendStrategy) predictOneStep(values []float64, _ *models.Decomposition, t int) (float64, bool) {
	if t < 3 {
		return 0, false
	}
	slope, intercept := olsFit(values[:t])
	return clampNonNegative(intercept + slope*float64(t)), true
}

// movingAverageStrategy projects the mean of the trailing window flat
// across the horizon.
type movingAverageStrategy struct{}

func (movingAverageStrategy) method() models.ForecastMethod { return models.ForecastMovingAverage }

func (movingAverageStrategy) forecast(values []float64, _ *models.Decomposition, horizon int) []float64 {
	level := trailingMean(values, movingAverageWindow)
	out := make([]float64, horizon)
	for h := range out {
		out[h] = clampNonNegative(level)
	}
	return out
}

func (movingAverageStrategy) predictOneStep(values []float64, _ *models.Decomposition, t int) (float64, bool) {
	if t < 1 {
		return 0, false
	}
	return clampNonNegative(trailingMean(values[:t], movingAverageWindow)), true
}

// exponentialSmoothingStrategy is simple (single) exponential smoothing
// with the configured level constant.
type exponentialSmoothingStrategy struct {
	alpha float64
}

func (exponentialSmoothingStrategy) method() models.ForecastMethod {
	return models.ForecastExponentialSmoothing
}

func (s exponentialSmoothingStrategy) level(values []float64) float64 {
	level := values[0]
	for _, v := range values[1:] {
		level = s.alpha*v + (1-s.alpha)*level
	}
	return level
}

func (s exponentialSmoothingStrategy) forecast(values []float64, _ *models.Decomposition, horizon int) []float64 {
	level := clampNonNegative(s.level(values))
	out := make([]float64, horizon)
	for h := range out {
		out[h] = level
	}
	return out
}

func (s exponentialSmoothingStrategy) predictOneStep(values []float64, _ *models.Decomposition, t int) (float64, bool) {
	if t < 1 {
		return 0, false
	}
	return clampNonNegative(s.level(values[:t])), true
}

// seasonalStrategy extrapolates the decomposition trend linearly and
// repeats the seasonal component across the horizon.
type seasonalStrategy struct{}

func (seasonalStrategy) method() models.ForecastMethod { return models.ForecastSeasonal }

func (seasonalStrategy) forecast(values []float64, decomp *models.Decomposition, horizon int) []float64 {
	if decomp == nil || !decomp.HasSeasonality {
		return movingAverageStrategy{}.forecast(values, decomp, horizon)
	}

	slope, intercept := olsFit(decomp.Trend)
	n := len(values)
	period := decomp.SeasonalPeriod
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		trend := intercept + slope*float64(n+h)
		seasonal := decomp.Seasonal[(n+h)%period]
		out[h] = clampNonNegative(trend + seasonal)
	}
	return out
}

func (seasonalStrategy) predictOneStep(values []float64, decomp *models.Decomposition, t int) (float64, bool) {
	if decomp == nil || !decomp.HasSeasonality || t < decomp.SeasonalPeriod {
		return 0, false
	}
	// Seasonal naive over the already-decomposed series: last trend value
	// plus the seasonal phase at t.
	return clampNonNegative(decomp.Trend[t-1] + decomp.Seasonal[t%decomp.SeasonalPeriod]), true
}

// holtWintersStrategy is additive triple exponential smoothing. It needs
// at least two full seasons; below that it degrades to simple smoothing.
type holtWintersStrategy struct {
	cfg models.HoltWintersConfig
}

func (holtWintersStrategy) method() models.ForecastMethod { return models.ForecastHoltWinters }

type hwState struct {
	level    float64
	trend    float64
	seasonal []float64
}

// fit runs the smoothing recursion over values[:upto] with period m and
// returns the final state. Returns false when the prefix is too short.
func (s holtWintersStrategy) fit(values []float64, m, upto int) (hwState, bool) {
	if m < 2 || upto < 2*m {
		return hwState{}, false
	}

	var firstSeason, secondSeason float64
	for i := 0; i < m; i++ {
		firstSeason += values[i]
		secondSeason += values[m+i]
	}
	firstSeason /= float64(m)
	secondSeason /= float64(m)

	st := hwState{
		level:    firstSeason,
		trend:    (secondSeason - firstSeason) / float64(m),
		seasonal: make([]float64, m),
	}
	for i := 0; i < m; i++ {
		st.seasonal[i] = values[i] - firstSeason
	}

	for t := m; t < upto; t++ {
		prevLevel := st.level
		phase := t % m
		st.level = s.cfg.Alpha*(values[t]-st.seasonal[phase]) + (1-s.cfg.Alpha)*(st.level+st.trend)
		st.trend = s.cfg.Beta*(st.level-prevLevel) + (1-s.cfg.Beta)*st.trend
		st.seasonal[phase] = s.cfg.Gamma*(values[t]-st.level) + (1-s.cfg.Gamma)*st.seasonal[phase]
	}
	return st, true
}

func (s holtWintersStrategy) forecast(values []float64, decomp *models.Decomposition, horizon int) []float64 {
	m := seasonLength(decomp, len(values))
	st, ok := s.fit(values, m, len(values))
	if !ok {
		return exponentialSmoothingStrategy{alpha: s.cfg.Alpha}.forecast(values, decomp, horizon)
	}

	n := len(values)
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		out[h] = clampNonNegative(st.level + float64(h+1)*st.trend + st.seasonal[(n+h)%m])
	}
	return out
}

func (s holtWintersStrategy) predictOneStep(values []float64, decomp *models.Decomposition, t int) (float64, bool) {
	m := seasonLength(decomp, len(values))
	st, ok := s.fit(values, m, t)
	if !ok {
		return 0, false
	}
	return clampNonNegative(st.level + st.trend + st.seasonal[t%m]), true
}

// seasonLength picks the smoothing period: the detected seasonal period
// when present, otherwise a weekly default capped to half the series.
func seasonLength(decomp *models.Decomposition, n int) int {
	if decomp != nil && decomp.SeasonalPeriod >= 2 {
		return decomp.SeasonalPeriod
	}
	m := 7
	if m > n/2 {
		m = n / 2
	}
	return m
}

func trailingMean(values []float64, window int) float64 {
	if len(values) > window {
		values = values[len(values)-window:]
	}
	return mean(values)
}

// Costs cannot go negative; forecasts get floored at zero.
func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
