// Package pricing resolves the pricing table applicable to a usage event.
// Tables are published by an external registry-sync process; this package
// only reads them.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/meterwise/costops/internal/models"

	"gorm.io/gorm"
)

// Store looks up the pricing table for (provider, model, timestamp, region),
// falling back to the provider's default region.
type Store interface {
	Lookup(ctx context.Context, provider, modelID string, ts time.Time, region string) (*models.PricingTable, error)
}

// GormStore reads pricing tables from the database.
type GormStore struct {
	db            *gorm.DB
	defaultRegion string
}

// NewGormStore creates a database-backed pricing store.
func NewGormStore(db *gorm.DB, defaultRegion string) *GormStore {
	return &GormStore{db: db, defaultRegion: defaultRegion}
}

// Lookup returns the newest pricing row whose effective window covers ts for
// the exact region, then the default region, then region-agnostic rows.
// Absence of any match is a hard PricingNotFound failure.
func (s *GormStore) Lookup(ctx context.Context, provider, modelID string, ts time.Time, region string) (*models.PricingTable, error) {
	regions := []string{region}
	if s.defaultRegion != "" && s.defaultRegion != region {
		regions = append(regions, s.defaultRegion)
	}
	if region != "" {
		regions = append(regions, "")
	}

	for _, r := range regions {
		table, err := s.lookupRegion(ctx, provider, modelID, ts, r)
		if err != nil {
			return nil, err
		}
		if table != nil {
			return table, nil
		}
	}

	return nil, models.NewPricingNotFoundError(provider, modelID, region)
}

func (s *GormStore) lookupRegion(ctx context.Context, provider, modelID string, ts time.Time, region string) (*models.PricingTable, error) {
	var table models.PricingTable
	err := s.db.WithContext(ctx).
		Where("provider = ? AND model_id = ? AND region = ?", provider, modelID, region).
		Where("effective_date <= ?", ts).
		Where("end_date IS NULL OR end_date >= ?", ts).
		Order("effective_date DESC").
		First(&table).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pricing lookup failed: %w", err)
	}

	// Tiers are walked ascending by threshold during discount selection.
	sort.Slice(table.DiscountTiers, func(i, j int) bool {
		return table.DiscountTiers[i].MinTokens < table.DiscountTiers[j].MinTokens
	})

	return &table, nil
}

// Publish inserts a pricing row. Rows are immutable once published; new
// prices arrive as new rows with later effective dates.
func (s *GormStore) Publish(ctx context.Context, table *models.PricingTable) error {
	if err := s.db.WithContext(ctx).Create(table).Error; err != nil {
		return fmt.Errorf("failed to publish pricing table: %w", err)
	}
	return nil
}
