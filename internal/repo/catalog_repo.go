// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for restaurants,
// products and menu entries.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition. Coverage decisions are made by the service layer
// from the rows returned here.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ListRestaurants returns every restaurant ordered by name, then ID.
func ListRestaurants(ctx context.Context, db *gorm.DB) ([]domain.Restaurant, error) {
	var out []domain.Restaurant
	err := db.WithContext(ctx).
		Order("name asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// GetRestaurant fetches a single restaurant by ID, or ErrNotFound.
func GetRestaurant(ctx context.Context, db *gorm.DB, id uint) (*domain.Restaurant, error) {
	var r domain.Restaurant
	if err := db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// RestaurantsByIDs returns the restaurants with the given IDs, ordered by
// name then ID. Unknown IDs are ignored.
func RestaurantsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Restaurant, error) {
	if len(ids) == 0 {
		return []domain.Restaurant{}, nil
	}
	var out []domain.Restaurant
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("name asc").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListProducts returns the whole catalog with categories, ordered by ID.
func ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var out []domain.Product
	err := db.WithContext(ctx).
		Preload("Category").
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ListAvailableProducts returns products that at least one restaurant
// currently offers, ordered by ID.
func ListAvailableProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	offered := db.Model(&domain.MenuItem{}).
		Select("product_id").
		Where("availability = ?", true)

	var out []domain.Product
	err := db.WithContext(ctx).
		Preload("Category").
		Where("id IN (?)", offered).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// ProductsByIDs returns the products with the given IDs. Unknown IDs are ignored.
func ProductsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error
	return out, err
}

// ListMenuItems returns every menu entry.
func ListMenuItems(ctx context.Context, db *gorm.DB) ([]domain.MenuItem, error) {
	var out []domain.MenuItem
	err := db.WithContext(ctx).
		Order("restaurant_id asc").
		Order("product_id asc").
		Find(&out).Error
	return out, err
}

// MenuItemsForProducts returns all menu entries (available or not) that
// reference any of productIDs.
func MenuItemsForProducts(ctx context.Context, db *gorm.DB, productIDs []uint) ([]domain.MenuItem, error) {
	if len(productIDs) == 0 {
		return []domain.MenuItem{}, nil
	}
	var out []domain.MenuItem
	err := db.WithContext(ctx).
		Where("product_id IN ?", productIDs).
		Order("restaurant_id asc").
		Order("product_id asc").
		Find(&out).Error
	return out, err
}

// UpsertMenuItem sets the availability of productID at restaurantID,
// creating the entry when missing. The (restaurant, product) pair stays unique.
func UpsertMenuItem(ctx context.Context, db *gorm.DB, restaurantID, productID uint, available bool) (*domain.MenuItem, error) {
	item := &domain.MenuItem{
		RestaurantID: restaurantID,
		ProductID:    productID,
		Availability: available,
		UpdatedAt:    time.Now().UTC(),
	}
	err := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"availability", "updated_at"}),
		}).
		Create(item).Error
	if err != nil {
		return nil, err
	}

	var out domain.MenuItem
	if err := db.WithContext(ctx).
		Where("restaurant_id = ? AND product_id = ?", restaurantID, productID).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
