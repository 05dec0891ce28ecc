// Package services – CatalogService
//
// CatalogService serves the read side of restaurants, products and menus
// (product listing with optional search, restaurant listing, the
// product × restaurant availability matrix) and the one catalog write the
// API exposes: toggling a product's availability at a restaurant.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/repo"
	"github.com/tbourn/go-foodcart-dispatch/internal/search"
)

// CatalogRepo defines the repository contract required by CatalogService.
type CatalogRepo interface {
	ListRestaurants(ctx context.Context, db *gorm.DB) ([]domain.Restaurant, error)
	GetRestaurant(ctx context.Context, db *gorm.DB, id uint) (*domain.Restaurant, error)
	ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error)
	ListAvailableProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error)
	ProductsByIDs(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Product, error)
	ListMenuItems(ctx context.Context, db *gorm.DB) ([]domain.MenuItem, error)
	UpsertMenuItem(ctx context.Context, db *gorm.DB, restaurantID, productID uint, available bool) (*domain.MenuItem, error)
	CatalogStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// AvailabilityRow is one product with a flag per restaurant, aligned with
// AvailabilityMatrix.Restaurants.
type AvailabilityRow struct {
	Product      domain.Product `json:"product"`
	Availability []bool         `json:"availability"`
}

// AvailabilityMatrix tells which restaurant currently offers which product.
type AvailabilityMatrix struct {
	Restaurants []domain.Restaurant `json:"restaurants"`
	Products    []AvailabilityRow   `json:"products"`
}

// CatalogService provides catalog reads and menu updates.
type CatalogService struct {
	DB   *gorm.DB
	Repo CatalogRepo
	// SearchLimit caps search results; <= 0 means unlimited.
	SearchLimit int
}

// Products returns the products at least one restaurant currently offers.
// A non-blank query filters by name, description and category, best match
// first.
func (s *CatalogService) Products(ctx context.Context, query string) ([]domain.Product, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Products",
		trace.WithAttributes(attribute.Bool("search", strings.TrimSpace(query) != "")),
	)
	defer span.End()

	products, err := s.Repo.ListAvailableProducts(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return products, nil
	}

	docs := make([]search.Document, len(products))
	byID := make(map[uint]domain.Product, len(products))
	for i, p := range products {
		text := p.Name + " " + p.Description
		if p.Category != nil {
			text += " " + p.Category.Name
		}
		docs[i] = search.Document{ID: p.ID, Text: text}
		byID[p.ID] = p
	}
	hits := search.New(docs).TopK(query, s.SearchLimit)
	out := make([]domain.Product, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	return out, nil
}

// Restaurants returns restaurants ordered by name; a non-blank query filters
// by name and address, best match first.
func (s *CatalogService) Restaurants(ctx context.Context, query string) ([]domain.Restaurant, error) {
	restaurants, err := s.Repo.ListRestaurants(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return restaurants, nil
	}

	docs := make([]search.Document, len(restaurants))
	byID := make(map[uint]domain.Restaurant, len(restaurants))
	for i, r := range restaurants {
		docs[i] = search.Document{ID: r.ID, Text: r.Name + " " + r.Address}
		byID[r.ID] = r
	}
	hits := search.New(docs).TopK(query, s.SearchLimit)
	out := make([]domain.Restaurant, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	return out, nil
}

// Availability builds the product × restaurant matrix. Restaurants are
// ordered by name; a missing menu entry reads as unavailable.
func (s *CatalogService) Availability(ctx context.Context) (*AvailabilityMatrix, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Availability")
	defer span.End()

	restaurants, err := s.Repo.ListRestaurants(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	products, err := s.Repo.ListProducts(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	items, err := s.Repo.ListMenuItems(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	type key struct{ restaurant, product uint }
	avail := make(map[key]bool, len(items))
	for _, it := range items {
		avail[key{it.RestaurantID, it.ProductID}] = it.Availability
	}

	rows := make([]AvailabilityRow, len(products))
	for i, p := range products {
		flags := make([]bool, len(restaurants))
		for j, r := range restaurants {
			flags[j] = avail[key{r.ID, p.ID}]
		}
		rows[i] = AvailabilityRow{Product: p, Availability: flags}
	}
	span.SetAttributes(attribute.Int("restaurants", len(restaurants)), attribute.Int("products", len(products)))
	return &AvailabilityMatrix{Restaurants: restaurants, Products: rows}, nil
}

// SetAvailability creates or updates the menu entry for (restaurant, product).
func (s *CatalogService) SetAvailability(ctx context.Context, restaurantID, productID uint, available bool) (*domain.MenuItem, error) {
	if _, err := s.Repo.GetRestaurant(ctx, s.DB, restaurantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}
	found, err := s.Repo.ProductsByIDs(ctx, s.DB, []uint{productID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrProductNotFound
	}
	return s.Repo.UpsertMenuItem(ctx, s.DB, restaurantID, productID, available)
}

// Stats returns the values product listings are tagged with.
func (s *CatalogService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.CatalogStats(ctx, s.DB)
}
