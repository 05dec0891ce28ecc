package services

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/repo"
)

// MenuRepo is the persistence the coverage resolver reads.
type MenuRepo interface {
	MenuItemsForProducts(ctx context.Context, db *gorm.DB, productIDs []uint) ([]domain.MenuItem, error)
	RestaurantsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Restaurant, error)
	GetRestaurant(ctx context.Context, db *gorm.DB, id uint) (*domain.Restaurant, error)
}

// CoveringRestaurantIDs returns, in ascending order, the restaurants whose
// available entries cover every distinct product in productIDs. A restaurant
// qualifies iff the number of distinct requested products it offers with
// availability set equals the number of distinct requested products.
//
// An empty productIDs yields nil.
func CoveringRestaurantIDs(productIDs []uint, entries []domain.MenuItem) []uint {
	wanted := make(map[uint]struct{}, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = struct{}{}
	}
	if len(wanted) == 0 {
		return nil
	}

	stocked := make(map[uint]map[uint]struct{})
	for _, e := range entries {
		if !e.Availability {
			continue
		}
		if _, ok := wanted[e.ProductID]; !ok {
			continue
		}
		set := stocked[e.RestaurantID]
		if set == nil {
			set = make(map[uint]struct{}, len(wanted))
			stocked[e.RestaurantID] = set
		}
		set[e.ProductID] = struct{}{}
	}

	out := make([]uint, 0, len(stocked))
	for rid, set := range stocked {
		if len(set) == len(wanted) {
			out = append(out, rid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CoverageResolver finds the restaurants able to fulfil a product set.
type CoverageResolver struct {
	DB   *gorm.DB
	Repo MenuRepo
}

// AvailableRestaurants returns the covering restaurants ordered by name,
// then ID. No covering restaurant is an empty result, not an error.
func (r *CoverageResolver) AvailableRestaurants(ctx context.Context, productIDs []uint) ([]domain.Restaurant, error) {
	tr := otel.Tracer("services/CoverageResolver")
	ctx, span := tr.Start(ctx, "AvailableRestaurants",
		trace.WithAttributes(attribute.Int("products", len(productIDs))),
	)
	defer span.End()

	if len(productIDs) == 0 {
		return nil, ErrEmptyOrder
	}
	entries, err := r.Repo.MenuItemsForProducts(ctx, r.DB, productIDs)
	if err != nil {
		return nil, err
	}
	ids := CoveringRestaurantIDs(productIDs, entries)
	span.SetAttributes(attribute.Int("restaurants", len(ids)))
	if len(ids) == 0 {
		return []domain.Restaurant{}, nil
	}
	return r.Repo.RestaurantsByIDs(ctx, r.DB, ids)
}

// Covers reports whether restaurantID can fulfil productIDs right now.
// An unknown restaurant yields ErrRestaurantNotFound.
func (r *CoverageResolver) Covers(ctx context.Context, restaurantID uint, productIDs []uint) (bool, error) {
	if len(productIDs) == 0 {
		return false, ErrEmptyOrder
	}
	if _, err := r.Repo.GetRestaurant(ctx, r.DB, restaurantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrRestaurantNotFound
		}
		return false, err
	}
	entries, err := r.Repo.MenuItemsForProducts(ctx, r.DB, productIDs)
	if err != nil {
		return false, err
	}
	for _, id := range CoveringRestaurantIDs(productIDs, entries) {
		if id == restaurantID {
			return true, nil
		}
	}
	return false, nil
}
