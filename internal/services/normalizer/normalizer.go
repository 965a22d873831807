// Package normalizer converts heterogeneous raw usage payloads into the
// canonical UsageMetric. Source kinds are dispatched through a registry of
// named mapping functions so new sources are additions, not edits.
package normalizer

import (
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// rawMetric is the intermediate shape a source mapper produces before the
// normalizer applies token derivation and estimation.
type rawMetric struct {
	Provider  string
	ModelID   string
	RequestID string
	ProjectID string
	Region    string
	Timestamp time.Time

	TokensInput  int64
	TokensOutput int64
	TokensTotal  int64

	LatencyMs int

	// Raw text fields, used only when no token counts were reported.
	PromptText     string
	CompletionText string

	Metadata models.Metadata
}

// SourceMapper maps one source kind's payload into the intermediate shape.
type SourceMapper func(payload map[string]any) (*rawMetric, error)

// Normalizer converts tagged raw payloads into UsageMetrics.
type Normalizer struct {
	mappers map[string]SourceMapper
	// tolerance is the absolute token-count difference beyond which a
	// discrepancy is recorded on the metric.
	tolerance int64
}

// New creates a normalizer with the built-in source mappers registered.
func New(tolerance int64) *Normalizer {
	if tolerance <= 0 {
		tolerance = 10
	}
	n := &Normalizer{
		mappers:   make(map[string]SourceMapper),
		tolerance: tolerance,
	}
	n.Register(models.SourceDirectAPI, mapDirectAPI)
	n.Register(models.SourceObservabilityStream, mapObservabilityStream)
	n.Register(models.SourceEdgeAgent, mapEdgeAgent)
	n.Register(models.SourceBatchImport, mapBatchImport)
	return n
}

// Register adds or replaces the mapper for a source kind.
func (n *Normalizer) Register(source string, mapper SourceMapper) {
	n.mappers[source] = mapper
}

// Sources returns the registered source kinds.
func (n *Normalizer) Sources() []string {
	sources := make([]string, 0, len(n.mappers))
	for s := range n.mappers {
		sources = append(sources, s)
	}
	return sources
}

// Normalize converts an ingest event into a canonical UsageMetric with a
// newly generated identifier.
func (n *Normalizer) Normalize(event models.IngestEvent) (*models.UsageMetric, error) {
	mapper, ok := n.mappers[event.Source]
	if !ok {
		return nil, models.NewUnsupportedSourceError(event.Source)
	}

	raw, err := mapper(event.Payload)
	if err != nil {
		return nil, models.NewValidationError(
			fmt.Sprintf("failed to map %s payload", event.Source), err)
	}

	if raw.RequestID == "" {
		raw.RequestID = event.RequestID
	}
	if raw.Timestamp.IsZero() {
		raw.Timestamp = event.ReceivedAt
	}
	if raw.Metadata == nil {
		raw.Metadata = make(models.Metadata)
	}

	metric := &models.UsageMetric{
		ID:           uuid.New().String(),
		Timestamp:    raw.Timestamp.UTC(),
		Source:       event.Source,
		ModelID:      raw.ModelID,
		Provider:     raw.Provider,
		RequestID:    raw.RequestID,
		TokensInput:  raw.TokensInput,
		TokensOutput: raw.TokensOutput,
		TokensTotal:  raw.TokensTotal,
		LatencyMs:    raw.LatencyMs,
		ProjectID:    raw.ProjectID,
		Region:       raw.Region,
		Metadata:     raw.Metadata,
	}

	n.resolveTokenCounts(metric, raw)

	return metric, nil
}

// resolveTokenCounts derives missing totals, estimates counts from raw text
// when nothing was reported, and records discrepancies beyond the tolerance.
// The provider-reported total stays the source of truth.
func (n *Normalizer) resolveTokenCounts(metric *models.UsageMetric, raw *rawMetric) {
	summed := metric.TokensInput + metric.TokensOutput

	if metric.TokensTotal == 0 && summed > 0 {
		metric.TokensTotal = summed
		return
	}

	if metric.TokensTotal == 0 && summed == 0 {
		if raw.PromptText != "" || raw.CompletionText != "" {
			metric.TokensInput = EstimateTokens(raw.PromptText, metric.ModelID)
			metric.TokensOutput = EstimateTokens(raw.CompletionText, metric.ModelID)
			metric.TokensTotal = metric.TokensInput + metric.TokensOutput
			metric.TokenCountEstimated = true
		}
		return
	}

	if diff := abs64(metric.TokensTotal - summed); diff > n.tolerance && summed > 0 {
		metric.TokenCountDiscrepancy = diff
		fiberlog.Warnf("Normalizer: token count discrepancy of %d on metric %s (reported=%d summed=%d)",
			diff, metric.ID, metric.TokensTotal, summed)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
