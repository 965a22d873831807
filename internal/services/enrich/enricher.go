// Package enrich attaches organizational and partition metadata to
// normalized metrics before costing.
package enrich

import (
	"github.com/meterwise/costops/internal/models"
)

// AttributeSource resolves organizational attributes for a project.
type AttributeSource interface {
	Attributes(projectID string) (models.EntityAttributes, bool)
}

// StaticAttributes is a config-backed attribute source.
type StaticAttributes map[string]models.EntityAttributes

func (s StaticAttributes) Attributes(projectID string) (models.EntityAttributes, bool) {
	attrs, ok := s[projectID]
	return attrs, ok
}

// Enricher fills team, cost-center, pricing-tier and partition fields on a
// metric. After enrichment the metric is immutable.
type Enricher struct {
	attrs         AttributeSource
	defaultRegion string
}

// New creates an enricher. attrs may be nil when no organizational mapping
// is configured.
func New(attrs AttributeSource, defaultRegion string) *Enricher {
	if defaultRegion == "" {
		defaultRegion = "us-east-1"
	}
	return &Enricher{attrs: attrs, defaultRegion: defaultRegion}
}

// Enrich mutates the metric in place; it is the only mutation step between
// normalization and costing.
func (e *Enricher) Enrich(m *models.UsageMetric) {
	if e.attrs != nil && m.ProjectID != "" {
		if attrs, ok := e.attrs.Attributes(m.ProjectID); ok {
			if m.TeamID == "" {
				m.TeamID = attrs.TeamID
			}
			if m.CostCenter == "" {
				m.CostCenter = attrs.CostCenter
			}
			if m.PricingTier == "" {
				m.PricingTier = attrs.PricingTier
			}
		}
	}

	if m.Region == "" {
		m.Region = e.defaultRegion
	}

	ts := m.Timestamp.UTC()
	m.PartitionDate = ts.Format("2006-01-02")
	m.PartitionHour = ts.Hour()
}
