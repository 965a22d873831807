package models

// Cache backend selection shared by the dedup cache.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// DedupConfig configures the fingerprint cache used to suppress
// re-delivered events.
type DedupConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"`
	Capacity   int    `yaml:"capacity" json:"capacity"`
	RedisURL   string `yaml:"redis_url,omitempty" json:"redis_url,omitzero"`
}

// IngestionConfig configures the concurrent ingestion pipeline.
type IngestionConfig struct {
	Workers   int         `yaml:"workers" json:"workers"`
	QueueSize int         `yaml:"queue_size" json:"queue_size"`
	Dedup     DedupConfig `yaml:"dedup" json:"dedup"`
	// TokenDiscrepancyTolerance is the absolute token-count difference
	// beyond which a discrepancy is recorded.
	TokenDiscrepancyTolerance int64 `yaml:"token_discrepancy_tolerance" json:"token_discrepancy_tolerance"`
	// DefaultRegion is stamped on metrics that arrive without one.
	DefaultRegion string `yaml:"default_region" json:"default_region"`
}

// PricingCacheConfig configures the read-through pricing lookup cache.
type PricingCacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
	Capacity   int `yaml:"capacity" json:"capacity"`
}

// HoltWintersConfig holds the triple-smoothing constants. The defaults are
// the conventional 0.2/0.1/0.1 but remain tunable per deployment.
type HoltWintersConfig struct {
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Beta  float64 `yaml:"beta" json:"beta"`
	Gamma float64 `yaml:"gamma" json:"gamma"`
}

// BudgetWeights combines the three budget projection strategies.
type BudgetWeights struct {
	Linear  float64 `yaml:"linear" json:"linear"`
	Pattern float64 `yaml:"pattern" json:"pattern"`
	Trend   float64 `yaml:"trend" json:"trend"`
}

// AnalyticsConfig configures forecasting, anomaly detection and budget
// projection.
type AnalyticsConfig struct {
	MinForecastPoints int               `yaml:"min_forecast_points" json:"min_forecast_points"`
	HoltWinters       HoltWintersConfig `yaml:"holt_winters" json:"holt_winters"`
	BudgetWeights     BudgetWeights     `yaml:"budget_weights" json:"budget_weights"`
	// DiscountTieBreak selects which tier wins when thresholds tie:
	// "largest_rate" (default) or "first".
	DiscountTieBreak string `yaml:"discount_tie_break" json:"discount_tie_break"`
}

// EventsConfig configures the outbound event publisher.
type EventsConfig struct {
	RedisURL string `yaml:"redis_url,omitempty" json:"redis_url,omitzero"`
	Channel  string `yaml:"channel" json:"channel"`
}

// EntityAttributes is the organizational metadata the enricher attaches to
// a metric, keyed by project id.
type EntityAttributes struct {
	TeamID      string `yaml:"team_id" json:"team_id"`
	CostCenter  string `yaml:"cost_center" json:"cost_center"`
	PricingTier string `yaml:"pricing_tier" json:"pricing_tier"`
}

// EnrichmentConfig maps project ids to organizational attributes.
type EnrichmentConfig struct {
	Projects map[string]EntityAttributes `yaml:"projects" json:"projects"`
}

func (c *IngestionConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.TokenDiscrepancyTolerance <= 0 {
		c.TokenDiscrepancyTolerance = 10
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = "us-east-1"
	}
	if c.Dedup.Backend == "" {
		c.Dedup.Backend = CacheBackendMemory
	}
	if c.Dedup.TTLSeconds <= 0 {
		c.Dedup.TTLSeconds = 3600
	}
	if c.Dedup.Capacity <= 0 {
		c.Dedup.Capacity = 100_000
	}
}

func (c *PricingCacheConfig) ApplyDefaults() {
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 86_400
	}
	if c.Capacity <= 0 {
		c.Capacity = 4096
	}
}

func (c *AnalyticsConfig) ApplyDefaults() {
	if c.MinForecastPoints <= 0 {
		c.MinForecastPoints = 30
	}
	if c.HoltWinters.Alpha <= 0 {
		c.HoltWinters.Alpha = 0.2
	}
	if c.HoltWinters.Beta <= 0 {
		c.HoltWinters.Beta = 0.1
	}
	if c.HoltWinters.Gamma <= 0 {
		c.HoltWinters.Gamma = 0.1
	}
	if c.BudgetWeights.Linear <= 0 && c.BudgetWeights.Pattern <= 0 && c.BudgetWeights.Trend <= 0 {
		c.BudgetWeights = BudgetWeights{Linear: 0.3, Pattern: 0.4, Trend: 0.3}
	}
	if c.DiscountTieBreak == "" {
		c.DiscountTieBreak = "largest_rate"
	}
}

func (c *EventsConfig) ApplyDefaults() {
	if c.Channel == "" {
		c.Channel = "costops:events"
	}
}
