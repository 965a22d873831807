// Package costing converts usage metrics into cost records under
// provider-specific pricing rules. The calculator is a pure function of its
// inputs and safe to run from many workers at once.
package costing

import (
	"context"
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"
	"github.com/meterwise/costops/internal/services/pricing"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// VolumeProvider reports an organization's trailing-30-day token volume for
// a provider, used for volume-discount tier selection.
type VolumeProvider interface {
	TrailingTokenVolume(ctx context.Context, costCenter, provider string, asOf time.Time) (int64, error)
}

// TieBreakLargestRate selects the larger discount when two tiers share a
// threshold; TieBreakFirst keeps the first listed.
const (
	TieBreakLargestRate = "largest_rate"
	TieBreakFirst       = "first"
)

var million = money.FromInt64(1_000_000)

// Calculator applies a pricing table to a usage metric.
type Calculator struct {
	pricing  pricing.Store
	volume   VolumeProvider
	tieBreak string
}

// New creates a calculator. volume may be nil, in which case no volume
// discounts apply.
func New(pricingStore pricing.Store, volume VolumeProvider, tieBreak string) *Calculator {
	if tieBreak == "" {
		tieBreak = TieBreakLargestRate
	}
	return &Calculator{pricing: pricingStore, volume: volume, tieBreak: tieBreak}
}

// Cost looks up pricing for the metric and produces a cost record. A failed
// pricing lookup is a hard per-event failure; the metric is never costed
// with guessed prices.
func (c *Calculator) Cost(ctx context.Context, m *models.UsageMetric) (*models.CostRecord, error) {
	table, err := c.pricing.Lookup(ctx, m.Provider, m.ModelID, m.Timestamp, m.Region)
	if err != nil {
		return nil, err
	}

	volume := int64(0)
	if c.volume != nil {
		volume, err = c.volume.TrailingTokenVolume(ctx, m.CostCenter, m.Provider, m.Timestamp)
		if err != nil {
			// Discounts are best-effort; a volume lookup failure costs the
			// event at the undiscounted rate rather than dead-lettering it.
			fiberlog.Warnf("Costing: trailing volume lookup failed for %s/%s: %v", m.CostCenter, m.Provider, err)
			volume = 0
		}
	}

	return c.cost(m, table, volume), nil
}

// cost is the pure arithmetic core, separated for direct testing.
func (c *Calculator) cost(m *models.UsageMetric, table *models.PricingTable, trailingVolume int64) *models.CostRecord {
	inputCost := money.FromInt64(m.TokensInput).
		Mul(table.InputPricePerMillion).Div(million).Round()
	outputCost := money.FromInt64(m.TokensOutput).
		Mul(table.OutputPricePerMillion).Div(million).Round()
	baseCost := inputCost.Add(outputCost)

	discountRate := c.SelectDiscountRate(table.DiscountTiers, trailingVolume)
	discountAmount := baseCost.MulFloat(discountRate).Round()

	peak := money.Zero()
	if table.PeakMultiplier > 1 && table.IsPeakHour(m.Timestamp) {
		peak = baseCost.MulFloat(table.PeakMultiplier - 1).Round()
	}

	regional := money.Zero()
	if rate, ok := table.RegionalSurcharges[m.Region]; ok && rate > 0 {
		regional = baseCost.MulFloat(rate).Round()
	}

	feature := money.Zero()
	for _, tag := range m.FeatureTags() {
		if flat, ok := table.FeatureSurcharges[tag]; ok {
			feature = feature.Add(flat)
		}
	}
	feature = feature.Round()

	surcharges := peak.Add(regional).Add(feature)

	total := baseCost.MulFloat(1 - discountRate).Add(surcharges).Round()
	total, clamped := total.ClampZero()
	if clamped {
		fiberlog.Warnf("Costing: negative total clamped to zero for metric %s", m.ID)
	}

	return &models.CostRecord{
		MetricID:     m.ID,
		Timestamp:    m.Timestamp,
		Provider:     m.Provider,
		ModelID:      m.ModelID,
		TokensInput:  m.TokensInput,
		TokensOutput: m.TokensOutput,
		TokensTotal:  m.TokensTotal,

		InputCost:  inputCost,
		OutputCost: outputCost,
		BaseCost:   baseCost,

		DiscountRate:   discountRate,
		DiscountAmount: discountAmount,

		PeakSurcharge:     peak,
		RegionalSurcharge: regional,
		FeatureSurcharge:  feature,
		Surcharges:        surcharges,

		TotalCost: total,
		Clamped:   clamped,

		PricingVersion: table.Version,
		Currency:       table.Currency,

		ProjectID:  m.ProjectID,
		TeamID:     m.TeamID,
		CostCenter: m.CostCenter,
		Region:     m.Region,
	}
}

// SelectDiscountRate walks tiers ascending by threshold and returns the rate
// of the highest tier whose threshold the trailing volume meets. Ties on the
// threshold break toward the larger discount unless configured otherwise.
func (c *Calculator) SelectDiscountRate(tiers models.DiscountTiers, trailingVolume int64) float64 {
	best := 0.0
	bestMin := int64(-1)
	for _, tier := range tiers {
		if trailingVolume < tier.MinTokens {
			continue
		}
		switch {
		case tier.MinTokens > bestMin:
			best = tier.Rate
			bestMin = tier.MinTokens
		case tier.MinTokens == bestMin && c.tieBreak == TieBreakLargestRate && tier.Rate > best:
			best = tier.Rate
		}
	}
	if best < 0 || best > 1 {
		// A misconfigured tier never produces negative or >100% pricing.
		fiberlog.Warnf("Costing: discount rate %.4f out of range, ignoring", best)
		return 0
	}
	return best
}

// CostWithTable skips the pricing lookup; used by replays and tests that
// already hold a table.
func (c *Calculator) CostWithTable(m *models.UsageMetric, table *models.PricingTable, trailingVolume int64) (*models.CostRecord, error) {
	if table == nil {
		return nil, fmt.Errorf("nil pricing table")
	}
	return c.cost(m, table, trailingVolume), nil
}
