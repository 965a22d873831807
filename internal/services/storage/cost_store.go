package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/meterwise/costops/internal/models"

	"gorm.io/gorm"
)

// CostStore is the append-only sink for cost records plus the read side the
// aggregator and analytics chain query. Records are never updated or
// deleted once stored.
type CostStore struct {
	db *gorm.DB
}

// NewCostStore wraps a connected database.
func NewCostStore(db *gorm.DB) *CostStore {
	return &CostStore{db: db}
}

// Store appends one cost record.
func (s *CostStore) Store(ctx context.Context, record *models.CostRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to store cost record: %w", err)
	}
	return nil
}

// StoreBatch appends many cost records in chunks.
func (s *CostStore) StoreBatch(ctx context.Context, records []models.CostRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, 500).Error; err != nil {
		return fmt.Errorf("failed to store cost records: %w", err)
	}
	return nil
}

// QueryFilter narrows a range query over stored records.
type QueryFilter struct {
	Start      time.Time
	End        time.Time
	Provider   string
	ModelID    string
	ProjectID  string
	CostCenter string
	TeamID     string
	Region     string
}

// Query returns the records matching the filter, ordered by timestamp.
func (s *CostStore) Query(ctx context.Context, filter QueryFilter) ([]models.CostRecord, error) {
	query := s.db.WithContext(ctx).Model(&models.CostRecord{})

	if !filter.Start.IsZero() {
		query = query.Where("timestamp >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("timestamp < ?", filter.End)
	}
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.ModelID != "" {
		query = query.Where("model_id = ?", filter.ModelID)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.CostCenter != "" {
		query = query.Where("cost_center = ?", filter.CostCenter)
	}
	if filter.TeamID != "" {
		query = query.Where("team_id = ?", filter.TeamID)
	}
	if filter.Region != "" {
		query = query.Where("region = ?", filter.Region)
	}

	var records []models.CostRecord
	if err := query.Order("timestamp ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	return records, nil
}

// TrailingTokenVolume implements costing.VolumeProvider: total tokens for a
// cost center and provider over the trailing 30 days.
func (s *CostStore) TrailingTokenVolume(ctx context.Context, costCenter, provider string, asOf time.Time) (int64, error) {
	var volume int64
	err := s.db.WithContext(ctx).
		Model(&models.CostRecord{}).
		Where("cost_center = ? AND provider = ?", costCenter, provider).
		Where("timestamp >= ? AND timestamp < ?", asOf.AddDate(0, 0, -30), asOf).
		Select("COALESCE(SUM(tokens_total), 0)").
		Scan(&volume).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum trailing token volume: %w", err)
	}
	return volume, nil
}

// DeadLetter records an event that could not be processed.
func (s *CostStore) DeadLetter(ctx context.Context, event *models.DeadLetterEvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to store dead letter event: %w", err)
	}
	return nil
}

// DeadLetters returns recent dead-lettered events, newest first.
func (s *CostStore) DeadLetters(ctx context.Context, limit int) ([]models.DeadLetterEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.DeadLetterEvent
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letter events: %w", err)
	}
	return events, nil
}
