package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/money"
)

// DiscountTier is a volume-discount bracket: the rate applies once the
// trailing token volume crosses MinTokens.
type DiscountTier struct {
	MinTokens int64   `json:"min_tokens"`
	Rate      float64 `json:"rate"`
}

// DiscountTiers is stored as a JSON column and kept sorted ascending by
// MinTokens by the pricing store.
type DiscountTiers []DiscountTier

func (t DiscountTiers) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	return string(b), err
}

func (t *DiscountTiers) Scan(value any) error {
	return scanJSON(value, t, "DiscountTiers")
}

// FloatMap is a JSON-persisted string→float map (regional surcharge rates).
type FloatMap map[string]float64

func (m FloatMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *FloatMap) Scan(value any) error {
	return scanJSON(value, m, "FloatMap")
}

// AmountMap is a JSON-persisted string→decimal map (flat feature surcharges).
type AmountMap map[string]money.Amount

func (m AmountMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *AmountMap) Scan(value any) error {
	return scanJSON(value, m, "AmountMap")
}

// IntSlice is a JSON-persisted []int (peak hours, 0-23 UTC).
type IntSlice []int

func (s IntSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *IntSlice) Scan(value any) error {
	return scanJSON(value, s, "IntSlice")
}

func scanJSON(value, dest any, typeName string) error {
	if value == nil {
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for %s: %T", typeName, value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}

// PricingTable is a published pricing row for one (provider, model, region,
// effective window). Rows are immutable once published; the registry-sync
// process appends new versions rather than editing rows.
type PricingTable struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Provider      string     `gorm:"not null;size:50;index:idx_pricing_lookup;default:''" json:"provider"`
	ModelID       string     `gorm:"not null;size:100;index:idx_pricing_lookup;default:''" json:"model_id"`
	EffectiveDate time.Time  `gorm:"not null;index" json:"effective_date"`
	EndDate       *time.Time `json:"end_date,omitzero"`

	InputPricePerMillion  money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"input_price_per_1e6"`
	OutputPricePerMillion money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"output_price_per_1e6"`

	Currency string `gorm:"not null;size:3;default:'USD'" json:"currency"`
	Region   string `gorm:"not null;size:50;index:idx_pricing_lookup;default:''" json:"region"`
	Tier     string `gorm:"not null;size:50;default:''" json:"tier"`

	PeakMultiplier     float64       `gorm:"not null;default:1" json:"peak_multiplier"`
	PeakHours          IntSlice      `json:"peak_hours,omitzero"`
	RegionalSurcharges FloatMap      `json:"regional_surcharges,omitzero"`
	FeatureSurcharges  AmountMap     `json:"feature_surcharges,omitzero"`
	DiscountTiers      DiscountTiers `json:"discount_tiers,omitzero"`

	Version   string    `gorm:"not null;size:50;default:''" json:"version"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (PricingTable) TableName() string {
	return "pricing_tables"
}

// ActiveAt reports whether this row's effective window covers ts.
func (p *PricingTable) ActiveAt(ts time.Time) bool {
	if ts.Before(p.EffectiveDate) {
		return false
	}
	if p.EndDate != nil && ts.After(*p.EndDate) {
		return false
	}
	return true
}

// IsPeakHour reports whether the hour of ts (UTC) is listed as a peak hour.
func (p *PricingTable) IsPeakHour(ts time.Time) bool {
	hour := ts.UTC().Hour()
	for _, h := range p.PeakHours {
		if h == hour {
			return true
		}
	}
	return false
}
