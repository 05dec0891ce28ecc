// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
)

// DispatcherSnapshot is what the dispatcher view depends on. Counts catch
// deletions, which leave no updated_at behind.
type DispatcherSnapshot struct {
	ActiveOrders int64
	Restaurants  int64
	MenuItems    int64
	// Latest is the newest updated_at among orders, restaurants, menu
	// entries and cached coordinates; nil when nothing has been written.
	Latest *time.Time
}

// DispatcherStats summarizes the tables behind the dispatcher view.
func DispatcherStats(ctx context.Context, db *gorm.DB) (DispatcherSnapshot, error) {
	var snap DispatcherSnapshot
	var err error
	if snap.ActiveOrders, err = CountActiveOrders(ctx, db); err != nil {
		return DispatcherSnapshot{}, err
	}
	if err = db.WithContext(ctx).Model(&domain.Restaurant{}).Count(&snap.Restaurants).Error; err != nil {
		return DispatcherSnapshot{}, err
	}
	if err = db.WithContext(ctx).Model(&domain.MenuItem{}).Count(&snap.MenuItems).Error; err != nil {
		return DispatcherSnapshot{}, err
	}
	for _, model := range []any{&domain.Order{}, &domain.Restaurant{}, &domain.MenuItem{}, &domain.AddressCoordinates{}} {
		ts, err := latestUpdatedAt(ctx, db, model)
		if err != nil {
			return DispatcherSnapshot{}, err
		}
		if ts != nil && (snap.Latest == nil || ts.After(*snap.Latest)) {
			snap.Latest = ts
		}
	}
	return snap, nil
}

// CatalogStats returns the product count and the latest menu change, used to
// tag product listings.
func CatalogStats(ctx context.Context, db *gorm.DB) (products int64, latest *time.Time, err error) {
	if err = db.WithContext(ctx).Model(&domain.Product{}).Count(&products).Error; err != nil {
		return 0, nil, err
	}
	for _, model := range []any{&domain.Product{}, &domain.MenuItem{}} {
		ts, err := latestUpdatedAt(ctx, db, model)
		if err != nil {
			return 0, nil, err
		}
		if ts != nil && (latest == nil || ts.After(*latest)) {
			latest = ts
		}
	}
	return products, latest, nil
}

// latestUpdatedAt returns the greatest updated_at of model's table, or nil
// when the table is empty.
func latestUpdatedAt(ctx context.Context, db *gorm.DB, model any) (*time.Time, error) {
	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var rows []struct {
		UpdatedAt time.Time
	}
	err := db.WithContext(ctx).
		Model(model).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0].UpdatedAt, nil
}
