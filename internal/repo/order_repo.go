// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for orders and
// their items.
//
// Error semantics:
//   - Missing orders return ErrNotFound.
//   - Conditional updates that match no row (the order moved on since it was
//     read) return ErrStale.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
)

// ErrStale indicates a conditional update lost a race with another writer.
var ErrStale = errors.New("stale order state")

// CreateOrder inserts o and its Items. Callers wrap it in a transaction so
// items are created with the order or not at all.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	tx := db.WithContext(ctx)
	if err := tx.Omit(clause.Associations).Create(o).Error; err != nil {
		return err
	}
	if len(o.Items) == 0 {
		return nil
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	return tx.Omit(clause.Associations).Create(&o.Items).Error
}

// GetOrder fetches an order with its items, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id uint) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id asc") }).
		First(&o, id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CountActiveOrders returns the number of orders not yet completed.
func CountActiveOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("status <> ?", domain.StatusCompleted).
		Count(&total).Error
	return total, err
}

// ListActiveOrdersPage returns a page of not-yet-completed orders with
// items, oldest first. Use CountActiveOrders for pagination metadata.
func ListActiveOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id asc") }).
		Where("status <> ?", domain.StatusCompleted).
		Order("created_at asc").
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// OrderTotals computes Σ quantity × fixed_price per order in the database.
// Orders without items are absent from the result.
func OrderTotals(ctx context.Context, db *gorm.DB, orderIDs []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		OrderID uint
		Total   decimal.Decimal
	}
	err := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Select("order_id, SUM(quantity * fixed_price) AS total").
		Where("order_id IN ?", orderIDs).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.OrderID] = r.Total.Round(2)
	}
	return out, nil
}

// UpdateOrderIf applies updates to order id only while its status is still
// from. It returns ErrStale when no row matched.
func UpdateOrderIf(ctx context.Context, db *gorm.DB, id uint, from domain.OrderStatus, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}
