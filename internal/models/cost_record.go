package models

import (
	"time"

	"github.com/meterwise/costops/internal/money"
)

// CostRecord is the append-only output of the cost calculator. Every
// monetary component is persisted individually for auditability.
type CostRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MetricID  string    `gorm:"not null;size:36;uniqueIndex;default:''" json:"metric_id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Provider  string    `gorm:"not null;size:50;index;default:''" json:"provider"`
	ModelID   string    `gorm:"not null;size:100;index;default:''" json:"model_id"`

	TokensInput  int64 `gorm:"not null;default:0" json:"tokens_input"`
	TokensOutput int64 `gorm:"not null;default:0" json:"tokens_output"`
	TokensTotal  int64 `gorm:"not null;default:0" json:"tokens_total"`

	InputCost  money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"input_cost"`
	OutputCost money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"output_cost"`
	BaseCost   money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"base_cost"`

	DiscountRate   float64      `gorm:"not null;default:0" json:"discount_rate"`
	DiscountAmount money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"discount_amount"`

	PeakSurcharge     money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"peak_surcharge"`
	RegionalSurcharge money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"regional_surcharge"`
	FeatureSurcharge  money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"feature_surcharge"`
	Surcharges        money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"surcharges"`

	TotalCost money.Amount `gorm:"not null;type:decimal(18,6);default:0" json:"total_cost"`
	// Clamped is set when arithmetic would have produced a negative total.
	Clamped bool `gorm:"not null;default:false" json:"clamped,omitzero"`

	PricingVersion string `gorm:"not null;size:50;default:''" json:"pricing_version"`
	Currency       string `gorm:"not null;size:3;default:'USD'" json:"currency"`

	ProjectID  string `gorm:"not null;size:100;index;default:''" json:"project_id,omitzero"`
	TeamID     string `gorm:"not null;size:100;default:''" json:"team_id,omitzero"`
	CostCenter string `gorm:"not null;size:100;index;default:''" json:"cost_center,omitzero"`
	Region     string `gorm:"not null;size:50;default:''" json:"region,omitzero"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (CostRecord) TableName() string {
	return "cost_records"
}
