package costing

import (
	"testing"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTable() *models.PricingTable {
	return &models.PricingTable{
		Provider:              "openai",
		ModelID:               "gpt-4o",
		EffectiveDate:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		InputPricePerMillion:  money.MustFromString("10"),
		OutputPricePerMillion: money.MustFromString("30"),
		Currency:              "USD",
		PeakMultiplier:        1,
		Version:               "2026-01",
	}
}

func baseMetric() *models.UsageMetric {
	return &models.UsageMetric{
		ID:           "metric-1",
		Timestamp:    time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC),
		Provider:     "openai",
		ModelID:      "gpt-4o",
		TokensInput:  10_000,
		TokensOutput: 5_000,
		TokensTotal:  15_000,
	}
}

func TestCostWithTable(t *testing.T) {
	calc := New(nil, nil, TieBreakLargestRate)

	t.Run("prices tokens at per-million rates", func(t *testing.T) {
		record, err := calc.CostWithTable(baseMetric(), baseTable(), 0)
		require.NoError(t, err)

		assert.Equal(t, 0, record.InputCost.Cmp(money.MustFromString("0.10")))
		assert.Equal(t, 0, record.OutputCost.Cmp(money.MustFromString("0.15")))
		assert.Equal(t, 0, record.TotalCost.Cmp(money.MustFromString("0.25")))
		assert.Zero(t, record.DiscountRate)
		assert.True(t, record.Surcharges.IsZero())
		assert.False(t, record.Clamped)
	})

	t.Run("applies the discount before adding surcharges", func(t *testing.T) {
		table := baseTable()
		table.DiscountTiers = models.DiscountTiers{
			{MinTokens: 1_000_000, Rate: 0.10},
		}
		table.FeatureSurcharges = models.AmountMap{
			"vision": money.MustFromString("0.02"),
		}

		metric := baseMetric()
		metric.Metadata = models.Metadata{"features": []any{"vision"}}

		record, err := calc.CostWithTable(metric, table, 2_000_000)
		require.NoError(t, err)

		// total = 0.25 * (1 - 0.10) + 0.02 = 0.245
		assert.InDelta(t, 0.10, record.DiscountRate, 1e-9)
		assert.Equal(t, 0, record.TotalCost.Cmp(money.MustFromString("0.245")))
		assert.Equal(t, 0, record.FeatureSurcharge.Cmp(money.MustFromString("0.02")))
	})

	t.Run("charges the peak multiplier only during peak hours", func(t *testing.T) {
		table := baseTable()
		table.PeakMultiplier = 1.2
		table.PeakHours = models.IntSlice{9, 10, 11}

		offPeak := baseMetric() // 03:00 UTC
		record, err := calc.CostWithTable(offPeak, table, 0)
		require.NoError(t, err)
		assert.True(t, record.PeakSurcharge.IsZero())

		peak := baseMetric()
		peak.Timestamp = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
		record, err = calc.CostWithTable(peak, table, 0)
		require.NoError(t, err)
		// surcharge = 0.25 * (1.2 - 1) = 0.05
		assert.Equal(t, 0, record.PeakSurcharge.Cmp(money.MustFromString("0.05")))
		assert.Equal(t, 0, record.TotalCost.Cmp(money.MustFromString("0.30")))
	})

	t.Run("adds the regional surcharge for the metric region", func(t *testing.T) {
		table := baseTable()
		table.RegionalSurcharges = models.FloatMap{"eu-west-1": 0.04}

		metric := baseMetric()
		metric.Region = "eu-west-1"

		record, err := calc.CostWithTable(metric, table, 0)
		require.NoError(t, err)
		// surcharge = 0.25 * 0.04 = 0.01
		assert.Equal(t, 0, record.RegionalSurcharge.Cmp(money.MustFromString("0.01")))
		assert.Equal(t, 0, record.TotalCost.Cmp(money.MustFromString("0.26")))
	})

	t.Run("total never goes negative", func(t *testing.T) {
		table := baseTable()
		table.DiscountTiers = models.DiscountTiers{{MinTokens: 0, Rate: 1.0}}

		record, err := calc.CostWithTable(baseMetric(), table, 100)
		require.NoError(t, err)
		assert.False(t, record.TotalCost.IsNegative())
	})
}

func TestSelectDiscountRate(t *testing.T) {
	tiers := models.DiscountTiers{
		{MinTokens: 1_000_000, Rate: 0.05},
		{MinTokens: 10_000_000, Rate: 0.10},
		{MinTokens: 100_000_000, Rate: 0.15},
	}

	t.Run("selects the highest tier whose threshold is met", func(t *testing.T) {
		calc := New(nil, nil, TieBreakLargestRate)

		assert.Zero(t, calc.SelectDiscountRate(tiers, 999_999))
		assert.InDelta(t, 0.05, calc.SelectDiscountRate(tiers, 1_000_000), 1e-9)
		assert.InDelta(t, 0.10, calc.SelectDiscountRate(tiers, 50_000_000), 1e-9)
		assert.InDelta(t, 0.15, calc.SelectDiscountRate(tiers, 500_000_000), 1e-9)
	})

	t.Run("is monotonic in trailing volume", func(t *testing.T) {
		calc := New(nil, nil, TieBreakLargestRate)

		prev := 0.0
		for _, volume := range []int64{0, 1, 1_000_000, 5_000_000, 10_000_000, 99_999_999, 100_000_000, 1_000_000_000} {
			rate := calc.SelectDiscountRate(tiers, volume)
			assert.GreaterOrEqual(t, rate, prev, "rate must never decrease as volume grows (volume=%d)", volume)
			prev = rate
		}
	})

	t.Run("threshold ties break toward the larger rate by default", func(t *testing.T) {
		tied := models.DiscountTiers{
			{MinTokens: 1_000_000, Rate: 0.05},
			{MinTokens: 1_000_000, Rate: 0.08},
		}
		calc := New(nil, nil, TieBreakLargestRate)
		assert.InDelta(t, 0.08, calc.SelectDiscountRate(tied, 2_000_000), 1e-9)

		first := New(nil, nil, TieBreakFirst)
		assert.InDelta(t, 0.05, first.SelectDiscountRate(tied, 2_000_000), 1e-9)
	})

	t.Run("out-of-range rates are ignored", func(t *testing.T) {
		calc := New(nil, nil, TieBreakLargestRate)
		broken := models.DiscountTiers{{MinTokens: 0, Rate: 1.5}}
		assert.Zero(t, calc.SelectDiscountRate(broken, 1))
	})
}
