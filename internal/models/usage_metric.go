package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Source kinds handled by the normalizer registry.
const (
	SourceDirectAPI           = "direct-api"
	SourceObservabilityStream = "observability-stream"
	SourceEdgeAgent           = "edge-agent"
	SourceBatchImport         = "batch-import"
)

// IngestEvent is a raw usage payload tagged with its source kind, exactly as
// received at the ingestion boundary.
type IngestEvent struct {
	Source     string         `json:"source"`
	RequestID  string         `json:"request_id,omitzero"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}

// UsageMetric is the canonical usage record produced by the normalizer and
// enriched before costing. It is owned exclusively by the pipeline until
// handed to storage.
type UsageMetric struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	ModelID   string    `json:"model_id"`
	Provider  string    `json:"provider"`
	RequestID string    `json:"request_id,omitzero"`

	TokensInput  int64 `json:"tokens_input"`
	TokensOutput int64 `json:"tokens_output"`
	TokensTotal  int64 `json:"tokens_total"`

	// TokenCountEstimated is set when token counts were derived from raw
	// text rather than reported by the provider.
	TokenCountEstimated bool `json:"token_count_estimated"`
	// TokenCountDiscrepancy records the absolute difference between the
	// reported total and input+output when it exceeds the tolerance. The
	// provider-reported total remains the source of truth.
	TokenCountDiscrepancy int64 `json:"token_count_discrepancy,omitzero"`

	LatencyMs int `json:"latency_ms,omitzero"`

	ProjectID     string `json:"project_id,omitzero"`
	TeamID        string `json:"team_id,omitzero"`
	CostCenter    string `json:"cost_center,omitzero"`
	PricingTier   string `json:"pricing_tier,omitzero"`
	PartitionDate string `json:"partition_date,omitzero"`
	PartitionHour int    `json:"partition_hour"`
	Region        string `json:"region,omitzero"`

	Metadata Metadata `json:"metadata,omitzero"`
}

// Validate checks the invariants required before an event may be costed.
func (m *UsageMetric) Validate() error {
	if m.Provider == "" {
		return NewValidationError("usage metric missing provider", nil)
	}
	if m.ModelID == "" {
		return NewValidationError("usage metric missing model_id", nil)
	}
	if m.Timestamp.IsZero() {
		return NewValidationError("usage metric missing timestamp", nil)
	}
	if m.TokensInput < 0 || m.TokensOutput < 0 || m.TokensTotal < 0 {
		return NewValidationError("usage metric has negative token counts", nil)
	}
	if m.TokensTotal < m.TokensInput || m.TokensTotal < m.TokensOutput {
		return NewValidationError(
			fmt.Sprintf("tokens_total %d is less than a component count (input %d, output %d)",
				m.TokensTotal, m.TokensInput, m.TokensOutput), nil)
	}
	return nil
}

// FeatureTags returns the feature tags present in metadata, used for
// per-feature surcharges.
func (m *UsageMetric) FeatureTags() []string {
	raw, ok := m.Metadata["features"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}

// Metadata is a free-form attribute bag persisted as JSON.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Metadata: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

func (Metadata) GormDataType() string {
	return "json"
}

func (Metadata) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	case "sqlite":
		return "TEXT"
	case "clickhouse":
		return "String"
	default:
		return "TEXT"
	}
}

// DeadLetterEvent persists an event that failed validation or costing so no
// ingest failure is silently dropped.
type DeadLetterEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Source    string    `gorm:"not null;size:50;index;default:''" json:"source"`
	Reason    string    `gorm:"not null;size:50;index;default:''" json:"reason"`
	Detail    string    `gorm:"not null;type:text;default:''" json:"detail"`
	Payload   Metadata  `json:"payload,omitzero"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (DeadLetterEvent) TableName() string {
	return "dead_letter_events"
}
