package analytics

import (
	"context"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/aggregation"
	"github.com/meterwise/costops/internal/services/events"
	"github.com/meterwise/costops/internal/services/storage"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

const (
	defaultLookbackDays = 90
	// patternHistoryPeriods caps how many completed periods feed the budget
	// pattern matcher.
	patternHistoryPeriods = 6
)

// Service runs the analytics chain over stored cost records: it queries the
// store, buckets the records into a contiguous series, and hands the series
// to the statistical engines.
type Service struct {
	store      *storage.CostStore
	aggregator *aggregation.Aggregator
	forecaster *Forecaster
	detector   *AnomalyDetector
	projector  *BudgetProjector
	publisher  events.Publisher
}

func NewService(store *storage.CostStore, agg *aggregation.Aggregator, cfg models.AnalyticsConfig, pub events.Publisher) *Service {
	return &Service{
		store:      store,
		aggregator: agg,
		forecaster: NewForecaster(cfg),
		detector:   NewAnomalyDetector(),
		projector:  NewBudgetProjector(cfg.BudgetWeights),
		publisher:  pub,
	}
}

// Forecast projects the cost series of one entity across the requested
// horizon.
func (s *Service) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	series, err := s.series(ctx, req.EntityType, req.EntityID, req.LookbackDays, req.Granularity)
	if err != nil {
		return nil, err
	}
	return s.forecaster.Forecast(series, req.Horizon, req.ConfidenceLevel)
}

// DetectAnomalies runs every detection pass over one entity's series and
// publishes an alert event when anything at high severity or above turns up.
func (s *Service) DetectAnomalies(ctx context.Context, req models.AnomalyRequest) (*models.AnomalyReport, error) {
	series, err := s.series(ctx, req.EntityType, req.EntityID, req.LookbackDays, req.Granularity)
	if err != nil {
		return nil, err
	}

	report, err := s.detector.Detect(series, req.Sensitivity)
	if err != nil {
		return nil, err
	}
	report.EntityType = req.EntityType
	report.EntityID = req.EntityID

	if len(report.Alerts) > 0 {
		s.emit(ctx, events.TypeAnomalyDetected, report)
	}
	return report, nil
}

// AnalyzeTrend classifies the direction of one entity's cost series.
func (s *Service) AnalyzeTrend(ctx context.Context, req models.ForecastRequest) (*models.TrendAnalysis, error) {
	series, err := s.series(ctx, req.EntityType, req.EntityID, req.LookbackDays, req.Granularity)
	if err != nil {
		return nil, err
	}
	return AnalyzeTrend(models.SeriesValues(series))
}

// ProjectBudget estimates end-of-period spend for one cost center,
// publishing an event when the projection breaches the budget or actual
// spend has already crossed the alert utilization.
func (s *Service) ProjectBudget(ctx context.Context, req models.BudgetRequest) (*models.BudgetProjection, error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	daily, err := s.costCenterSeries(ctx, req.CostCenter, req.PeriodStart, asOf)
	if err != nil {
		return nil, err
	}

	history, err := s.budgetHistory(ctx, req)
	if err != nil {
		// Pattern matching degrades to the linear strategy without history.
		fiberlog.Warnf("Budget history lookup failed for %s: %v", req.CostCenter, err)
		history = nil
	}

	projection, err := s.projector.Project(req, daily, history)
	if err != nil {
		return nil, err
	}

	if projection.ProjectedOverBudget || projection.BudgetUtilization >= budgetAlertUtilization {
		s.emit(ctx, events.TypeBudgetProjectionExceeded, projection)
	}
	return projection, nil
}

// series queries and buckets one entity's cost records. The entity type
// maps onto the record dimension it filters.
func (s *Service) series(ctx context.Context, entityType, entityID string, lookbackDays int, granularity models.Granularity) ([]models.TimeSeriesPoint, error) {
	if !granularity.Valid() {
		if granularity != "" {
			return nil, models.NewValidationError("unknown granularity: "+string(granularity), nil)
		}
		granularity = models.GranularityDaily
	}
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	filter := storage.QueryFilter{Start: start, End: end}
	switch entityType {
	case "provider":
		filter.Provider = entityID
	case "model":
		filter.ModelID = entityID
	case "project":
		filter.ProjectID = entityID
	case "cost_center":
		filter.CostCenter = entityID
	case "team":
		filter.TeamID = entityID
	case "":
		// Whole-tenant series.
	default:
		return nil, models.NewValidationError("unknown entity_type: "+entityType, nil)
	}
	if entityType != "" && entityID == "" {
		return nil, models.NewValidationError("entity_id is required with entity_type", nil)
	}

	records, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, models.NewInternalError("failed to query cost records", err)
	}
	return s.aggregator.BuildSeries(records, granularity, start, end), nil
}

func (s *Service) costCenterSeries(ctx context.Context, costCenter string, start, end time.Time) ([]models.TimeSeriesPoint, error) {
	records, err := s.store.Query(ctx, storage.QueryFilter{
		Start:      start,
		End:        end,
		CostCenter: costCenter,
	})
	if err != nil {
		return nil, models.NewInternalError("failed to query cost records", err)
	}
	return s.aggregator.BuildSeries(records, models.GranularityDaily, start, end), nil
}

// budgetHistory loads up to patternHistoryPeriods completed periods of the
// same length immediately before the current one.
func (s *Service) budgetHistory(ctx context.Context, req models.BudgetRequest) ([]HistoricalPeriod, error) {
	length := req.PeriodEnd.Sub(req.PeriodStart)
	if length <= 0 {
		return nil, nil
	}

	var history []HistoricalPeriod
	end := req.PeriodStart
	for i := 0; i < patternHistoryPeriods; i++ {
		start := end.Add(-length)
		daily, err := s.costCenterSeries(ctx, req.CostCenter, start, end)
		if err != nil {
			return nil, err
		}

		total := 0.0
		for _, p := range daily {
			total += p.TotalCost.Float64()
		}
		if total > 0 {
			history = append(history, HistoricalPeriod{Daily: daily, Total: total})
		}
		end = start
	}
	return history, nil
}

func (s *Service) emit(ctx context.Context, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		fiberlog.Warnf("Failed to publish %s event: %v", eventType, err)
	}
}
