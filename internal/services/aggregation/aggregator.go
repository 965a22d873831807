// Package aggregation groups cost records along caller-specified dimensions
// and computes derived metrics. Aggregation is a read-only batch computation
// over an immutable snapshot and may run concurrently with ingestion.
package aggregation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/money"
)

const topContributorCount = 5

// Aggregator groups cost records and computes requested aggregates.
type Aggregator struct{}

func New() *Aggregator {
	return &Aggregator{}
}

type group struct {
	key          map[string]string
	sortKey      string
	totalCost    money.Amount
	totalTokens  int64
	tokensInput  int64
	tokensOutput int64
	requestCount int64
}

// Aggregate groups records by the requested dimensions and computes
// aggregates plus a summary with grand totals and top contributors.
func (a *Aggregator) Aggregate(records []models.CostRecord, req models.AggregationRequest) (*models.AggregationResult, error) {
	if len(req.Dimensions) == 0 {
		return nil, models.NewValidationError("aggregation requires at least one dimension", nil)
	}
	for _, d := range req.Dimensions {
		if !d.Valid() {
			return nil, models.NewValidationError(fmt.Sprintf("unknown dimension: %s", d), nil)
		}
	}

	groups := make(map[string]*group)
	grandTotal := money.Zero()
	var grandTokens, grandRequests int64

	for i := range records {
		rec := &records[i]
		key := a.groupKey(rec, req.Dimensions)
		sortKey := a.sortKey(key, req.Dimensions)

		g, ok := groups[sortKey]
		if !ok {
			g = &group{key: key, sortKey: sortKey}
			groups[sortKey] = g
		}

		g.totalCost = g.totalCost.Add(rec.TotalCost)
		g.totalTokens += rec.TokensTotal
		g.tokensInput += rec.TokensInput
		g.tokensOutput += rec.TokensOutput
		g.requestCount++

		grandTotal = grandTotal.Add(rec.TotalCost)
		grandTokens += rec.TokensTotal
		grandRequests++
	}

	rows := make([]models.AggregationRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, a.buildRow(g, req.Metrics))
	}

	a.sortRows(rows, req.SortBy)

	contributors := a.topContributors(rows, grandTotal)

	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	return &models.AggregationResult{
		Rows: rows,
		Summary: models.AggregationSummary{
			TotalCost:       grandTotal,
			TotalTokens:     grandTokens,
			RequestCount:    grandRequests,
			GroupCount:      len(groups),
			TopContributors: contributors,
		},
	}, nil
}

func (a *Aggregator) groupKey(rec *models.CostRecord, dims []models.Dimension) map[string]string {
	key := make(map[string]string, len(dims))
	for _, d := range dims {
		switch d {
		case models.DimProvider:
			key[string(d)] = rec.Provider
		case models.DimModel:
			key[string(d)] = rec.ModelID
		case models.DimProject:
			key[string(d)] = rec.ProjectID
		case models.DimCostCenter:
			key[string(d)] = rec.CostCenter
		case models.DimTeam:
			key[string(d)] = rec.TeamID
		case models.DimRegion:
			key[string(d)] = rec.Region
		case models.DimDate:
			key[string(d)] = rec.Timestamp.UTC().Format("2006-01-02")
		case models.DimHour:
			key[string(d)] = strconv.Itoa(rec.Timestamp.UTC().Hour())
		}
	}
	return key
}

func (a *Aggregator) sortKey(key map[string]string, dims []models.Dimension) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = key[string(d)]
	}
	return strings.Join(parts, "/")
}

// buildRow computes the requested metrics for one group. Derived ratios are
// populated only when the denominator is non-zero.
func (a *Aggregator) buildRow(g *group, metrics []models.AggMetric) models.AggregationRow {
	row := models.AggregationRow{
		Key:          g.key,
		TotalCost:    g.totalCost,
		TotalTokens:  g.totalTokens,
		TokensInput:  g.tokensInput,
		TokensOutput: g.tokensOutput,
		RequestCount: g.requestCount,
	}

	wantAll := len(metrics) == 0
	want := make(map[models.AggMetric]bool, len(metrics))
	for _, m := range metrics {
		want[m] = true
	}

	cost := g.totalCost.Float64()

	if (wantAll || want[models.MetricAvgCost]) && g.requestCount > 0 {
		avg := cost / float64(g.requestCount)
		row.AvgCost = &avg
	}
	if (wantAll || want[models.MetricCostPer1kTokens]) && g.totalTokens > 0 {
		per1k := cost / float64(g.totalTokens) * 1000
		row.CostPer1kTokens = &per1k
	}
	if (wantAll || want[models.MetricCostPerRequest]) && g.requestCount > 0 {
		perReq := cost / float64(g.requestCount)
		row.CostPerRequest = &perReq
	}

	return row
}

func (a *Aggregator) sortRows(rows []models.AggregationRow, sortBy models.AggMetric) {
	sort.SliceStable(rows, func(i, j int) bool {
		switch sortBy {
		case models.MetricTotalTokens:
			if rows[i].TotalTokens != rows[j].TotalTokens {
				return rows[i].TotalTokens > rows[j].TotalTokens
			}
		case models.MetricRequestCount:
			if rows[i].RequestCount != rows[j].RequestCount {
				return rows[i].RequestCount > rows[j].RequestCount
			}
		default:
			if c := rows[i].TotalCost.Cmp(rows[j].TotalCost); c != 0 {
				return c > 0
			}
		}
		// Deterministic order for equal values.
		return groupLabel(rows[i].Key) < groupLabel(rows[j].Key)
	})
}

func (a *Aggregator) topContributors(rows []models.AggregationRow, grandTotal money.Amount) []models.Contributor {
	byCost := make([]models.AggregationRow, len(rows))
	copy(byCost, rows)
	sort.SliceStable(byCost, func(i, j int) bool {
		if c := byCost[i].TotalCost.Cmp(byCost[j].TotalCost); c != 0 {
			return c > 0
		}
		return groupLabel(byCost[i].Key) < groupLabel(byCost[j].Key)
	})

	n := min(topContributorCount, len(byCost))
	total := grandTotal.Float64()

	contributors := make([]models.Contributor, 0, n)
	for _, row := range byCost[:n] {
		share := 0.0
		if total > 0 {
			share = row.TotalCost.Float64() / total
		}
		contributors = append(contributors, models.Contributor{
			Key:       groupLabel(row.Key),
			TotalCost: row.TotalCost,
			Share:     share,
		})
	}
	return contributors
}

func groupLabel(key map[string]string) string {
	parts := make([]string, 0, len(key))
	for k, v := range key {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// BuildSeries buckets records into contiguous time-series points between
// start and end. Empty buckets are zero-filled so the analytics chain sees
// an unbroken series.
func (a *Aggregator) BuildSeries(records []models.CostRecord, granularity models.Granularity, start, end time.Time) []models.TimeSeriesPoint {
	if !granularity.Valid() {
		granularity = models.GranularityDaily
	}

	buckets := make(map[time.Time]*models.TimeSeriesPoint)
	for i := range records {
		rec := &records[i]
		bucket := granularity.Truncate(rec.Timestamp)
		p, ok := buckets[bucket]
		if !ok {
			p = &models.TimeSeriesPoint{
				PeriodStart: bucket,
				PeriodEnd:   granularity.Next(bucket),
			}
			buckets[bucket] = p
		}
		p.TotalCost = p.TotalCost.Add(rec.TotalCost)
		p.TotalTokens += rec.TokensTotal
		p.RequestCount++
	}

	var series []models.TimeSeriesPoint
	for cursor := granularity.Truncate(start); cursor.Before(end); cursor = granularity.Next(cursor) {
		if p, ok := buckets[cursor]; ok {
			series = append(series, *p)
		} else {
			series = append(series, models.TimeSeriesPoint{
				PeriodStart: cursor,
				PeriodEnd:   granularity.Next(cursor),
			})
		}
	}
	return series
}
