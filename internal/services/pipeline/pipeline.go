// Package pipeline drives one usage event through normalization,
// validation, deduplication, enrichment, costing and storage. Failures are
// dead-lettered with their reason; duplicates are counted and skipped.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/costing"
	"github.com/meterwise/costops/internal/services/dedup"
	"github.com/meterwise/costops/internal/services/enrich"
	"github.com/meterwise/costops/internal/services/events"
	"github.com/meterwise/costops/internal/services/normalizer"
	"github.com/meterwise/costops/internal/services/storage"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Outcome classifies what happened to one submitted event.
type Outcome string

const (
	OutcomeStored       Outcome = "stored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Result is the terminal state of one event's trip through the pipeline.
type Result struct {
	Outcome Outcome             `json:"outcome"`
	Metric  *models.UsageMetric `json:"metric,omitempty"`
	Record  *models.CostRecord  `json:"record,omitempty"`
	Reason  string              `json:"reason,omitempty"`
}

// Stats are the pipeline's running counters, safe for concurrent reads.
type Stats struct {
	Stored       int64 `json:"stored"`
	Duplicates   int64 `json:"duplicates"`
	DeadLettered int64 `json:"dead_lettered"`
	Errors       int64 `json:"errors"`
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	normalizer *normalizer.Normalizer
	dedup      dedup.Cache
	enricher   *enrich.Enricher
	calculator *costing.Calculator
	store      *storage.CostStore
	publisher  events.Publisher

	stored       atomic.Int64
	duplicates   atomic.Int64
	deadLettered atomic.Int64
	errors       atomic.Int64
}

func New(n *normalizer.Normalizer, cache dedup.Cache, e *enrich.Enricher, c *costing.Calculator, store *storage.CostStore, pub events.Publisher) *Pipeline {
	return &Pipeline{
		normalizer: n,
		dedup:      cache,
		enricher:   e,
		calculator: c,
		store:      store,
		publisher:  pub,
	}
}

// Process runs one event through every stage synchronously. It returns an
// error only for infrastructure failures (storage, cache); semantic
// failures end as duplicate or dead-lettered results.
func (p *Pipeline) Process(ctx context.Context, event models.IngestEvent) (*Result, error) {
	metric, err := p.normalizer.Normalize(event)
	if err != nil {
		return p.deadLetter(ctx, event, err)
	}

	if err := metric.Validate(); err != nil {
		return p.deadLetter(ctx, event, err)
	}

	duplicate, err := p.dedup.CheckAndInsert(ctx, dedup.Fingerprint(metric))
	if err != nil {
		p.errors.Add(1)
		return nil, models.NewInternalError("dedup check failed", err)
	}
	if duplicate {
		p.duplicates.Add(1)
		fiberlog.Debugf("[%s] Duplicate event skipped: %s %s/%s", event.RequestID, metric.Source, metric.Provider, metric.ModelID)
		return &Result{Outcome: OutcomeDuplicate, Metric: metric}, nil
	}

	p.enricher.Enrich(metric)

	record, err := p.calculator.Cost(ctx, metric)
	if err != nil {
		if models.IsType(err, models.ErrorTypePricingNotFound) {
			return p.deadLetter(ctx, event, err)
		}
		p.errors.Add(1)
		return nil, err
	}

	if err := p.store.Store(ctx, record); err != nil {
		p.errors.Add(1)
		return nil, models.NewInternalError("failed to store cost record", err)
	}
	p.stored.Add(1)

	p.emit(ctx, events.TypeMetricIngested, record)
	if metric.TokenCountDiscrepancy > 0 {
		p.emit(ctx, events.TypePricingMismatchDetected, map[string]any{
			"metric_id":   metric.ID,
			"provider":    metric.Provider,
			"model_id":    metric.ModelID,
			"discrepancy": metric.TokenCountDiscrepancy,
		})
	}

	return &Result{Outcome: OutcomeStored, Metric: metric, Record: record}, nil
}

// deadLetter persists the failed event with its reason so it can be
// replayed after a fix. Dead-lettering failures surface as errors; losing
// the event silently is worse than failing the request.
func (p *Pipeline) deadLetter(ctx context.Context, event models.IngestEvent, cause error) (*Result, error) {
	reason := "validation"
	if appErr, ok := cause.(*models.AppError); ok {
		reason = string(appErr.Type)
	}

	dle := &models.DeadLetterEvent{
		Source:  event.Source,
		Reason:  reason,
		Detail:  cause.Error(),
		Payload: models.Metadata(event.Payload),
	}
	if err := p.store.DeadLetter(ctx, dle); err != nil {
		p.errors.Add(1)
		return nil, models.NewInternalError("failed to dead-letter event", err)
	}
	p.deadLettered.Add(1)
	fiberlog.Warnf("[%s] Event dead-lettered (%s): %v", event.RequestID, reason, cause)

	return &Result{Outcome: OutcomeDeadLettered, Reason: reason}, nil
}

func (p *Pipeline) emit(ctx context.Context, eventType string, payload any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, payload); err != nil {
		// Publishing is best-effort; the record is already durable.
		fiberlog.Warnf("Failed to publish %s event: %v", eventType, err)
	}
}

// Stats returns a snapshot of the running counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Stored:       p.stored.Load(),
		Duplicates:   p.duplicates.Load(),
		DeadLettered: p.deadLettered.Load(),
		Errors:       p.errors.Load(),
	}
}
