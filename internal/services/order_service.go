// Package services – OrderService
//
// This file implements OrderService, which owns the order lifecycle:
// validated creation (order and items in one transaction, prices fixed at
// creation), best-effort geocoding of the delivery address after commit,
// restaurant assignment checked against current menu coverage, forward-only
// status transitions and the paginated dispatcher view with per-order
// restaurant rankings.
//
// Lifecycle events are published after each successful write; a publish
// failure is logged and never fails the request.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/events"
	"github.com/tbourn/go-foodcart-dispatch/internal/repo"
	"github.com/tbourn/go-foodcart-dispatch/internal/utils"
)

// OrderRepo defines the repository contract required by OrderService.
type OrderRepo interface {
	// CreateOrder inserts the order and its items.
	CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error
	// GetOrder fetches an order with items.
	GetOrder(ctx context.Context, db *gorm.DB, id uint) (*domain.Order, error)
	// CountActiveOrders counts orders not yet completed.
	CountActiveOrders(ctx context.Context, db *gorm.DB) (int64, error)
	// ListActiveOrdersPage returns a page of active orders, oldest first.
	ListActiveOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error)
	// OrderTotals sums item costs per order.
	OrderTotals(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]decimal.Decimal, error)
	// UpdateOrderIf updates an order only while it still has status from.
	UpdateOrderIf(ctx context.Context, db *gorm.DB, id uint, from domain.OrderStatus, updates map[string]any) error
	// DispatcherStats reports counts and the latest change behind the dispatcher view.
	DispatcherStats(ctx context.Context, db *gorm.DB) (DispatcherSnapshot, error)
}

// Validator turns a raw payload into a ValidatedOrder; *OrderValidator implements it.
type Validator interface {
	Validate(ctx context.Context, raw []byte) (*ValidatedOrder, error)
}

// CoverageChecker answers whether a restaurant covers a product set;
// *CoverageResolver implements it.
type CoverageChecker interface {
	Covers(ctx context.Context, restaurantID uint, productIDs []uint) (bool, error)
}

// Ranker ranks restaurants for an order; *RankingService implements it.
type Ranker interface {
	Rank(ctx context.Context, o *domain.Order) ([]RankedRestaurant, error)
}

// DispatcherOrder is an active order annotated with its total and ranking.
type DispatcherOrder struct {
	Order       domain.Order       `json:"order"`
	Total       decimal.Decimal    `json:"total"`
	Restaurants []RankedRestaurant `json:"restaurants"`
}

// OrderService coordinates order persistence, matching and events.
type OrderService struct {
	DB          *gorm.DB
	Repo        OrderRepo
	Validator   Validator
	Coverage    CoverageChecker
	Ranking     Ranker
	Coordinates Resolver
	Events      events.Publisher

	// RankConcurrency bounds concurrent rankings in the dispatcher view.
	RankConcurrency int
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create validates raw and persists the order with its items atomically.
// Geocoding of the delivery address happens after commit and never fails
// creation. Rule violations are returned as *ValidationError.
func (s *OrderService) Create(ctx context.Context, raw []byte) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	v, err := s.Validator.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	o := &domain.Order{
		FirstName:     v.FirstName,
		LastName:      v.LastName,
		PhoneNumber:   v.PhoneNumber,
		Address:       v.Address,
		Comment:       v.Comment,
		PaymentMethod: v.PaymentMethod,
		Status:        domain.StatusNew,
		Items:         make([]domain.OrderItem, 0, len(v.Items)),
	}
	for _, it := range v.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			FixedPrice: it.Price,
		})
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.Repo.CreateOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.id", int(o.ID)), attribute.Int("order.items", len(o.Items)))

	if s.Coordinates != nil {
		if res := s.Coordinates.Resolve(ctx, o.Address); res.Err != nil {
			zerolog.Ctx(ctx).Warn().Err(res.Err).Uint("order_id", o.ID).Msg("order address not geocoded")
		}
	}

	s.publish(ctx, events.OrderCreated, o)
	return o, nil
}

// Get returns an order with its items.
func (s *OrderService) Get(ctx context.Context, id uint) (*domain.Order, error) {
	o, err := s.Repo.GetOrder(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

// AssignRestaurant sets the order's restaurant after checking, against the
// current menus, that it can supply every product. A new order moves to
// the restaurant status. The order is unchanged on any error.
func (s *OrderService) AssignRestaurant(ctx context.Context, orderID, restaurantID uint) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "AssignRestaurant",
		trace.WithAttributes(
			attribute.Int("order.id", int(orderID)),
			attribute.Int("restaurant.id", int(restaurantID)),
		),
	)
	defer span.End()

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.StatusCompleted {
		return nil, ErrOrderCompleted
	}

	covers, err := s.Coverage.Covers(ctx, restaurantID, o.ProductIDs())
	if err != nil {
		return nil, err
	}
	if !covers {
		return nil, ErrRestaurantUnavailable
	}

	next := o.Status
	if next == domain.StatusNew {
		next = domain.StatusRestaurant
	}
	updates := map[string]any{
		"restaurant_id": restaurantID,
		"status":        next,
		"updated_at":    s.now(),
	}
	if err := s.Repo.UpdateOrderIf(ctx, s.DB, o.ID, o.Status, updates); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return nil, ErrOrderChanged
		}
		return nil, err
	}

	o.RestaurantID = &restaurantID
	o.Status = next
	o.UpdatedAt = updates["updated_at"].(time.Time)
	s.publish(ctx, events.OrderAssigned, o)
	return o, nil
}

// AdvanceStatus moves the order forward to status. Moving to courier stamps
// called_at; moving to completed stamps delivered_at (and called_at when the
// courier step was skipped). Same or earlier statuses yield
// ErrStatusRegression.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "AdvanceStatus",
		trace.WithAttributes(
			attribute.Int("order.id", int(orderID)),
			attribute.String("order.status", string(status)),
		),
	)
	defer span.End()

	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if status.Rank() <= o.Status.Rank() {
		return nil, ErrStatusRegression
	}

	now := s.now()
	updates := map[string]any{"status": status, "updated_at": now}
	if status.Rank() >= domain.StatusCourier.Rank() && o.CalledAt == nil {
		updates["called_at"] = now
		o.CalledAt = &now
	}
	if status == domain.StatusCompleted {
		updates["delivered_at"] = now
		o.DeliveredAt = &now
	}
	if err := s.Repo.UpdateOrderIf(ctx, s.DB, o.ID, o.Status, updates); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return nil, ErrOrderChanged
		}
		return nil, err
	}

	o.Status = status
	o.UpdatedAt = now
	s.publish(ctx, events.OrderStatus, o)
	return o, nil
}

// DispatcherPage returns a page of active orders with totals and rankings.
// Rankings are computed concurrently; geocoding problems only make
// distances unknown.
func (s *OrderService) DispatcherPage(ctx context.Context, page, pageSize int) ([]DispatcherOrder, int64, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "DispatcherPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = utils.DefaultPageSize
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountActiveOrders(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []DispatcherOrder{}, 0, nil
	}

	orders, err := s.Repo.ListActiveOrdersPage(ctx, s.DB, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	totals, err := s.Repo.OrderTotals(ctx, s.DB, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]DispatcherOrder, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	if s.RankConcurrency > 0 {
		g.SetLimit(s.RankConcurrency)
	}
	for i := range orders {
		i := i
		out[i] = DispatcherOrder{Order: orders[i], Total: totals[orders[i].ID]}
		g.Go(func() error {
			ranked, err := s.Ranking.Rank(gctx, &out[i].Order)
			if errors.Is(err, ErrEmptyOrder) {
				ranked, err = []RankedRestaurant{}, nil
			}
			out[i].Restaurants = ranked
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// DispatcherSnapshot is the state the dispatcher view's ETag is built from.
type DispatcherSnapshot = repo.DispatcherSnapshot

// DispatcherStats returns the values the dispatcher view's ETag is built from.
func (s *OrderService) DispatcherStats(ctx context.Context) (DispatcherSnapshot, error) {
	return s.Repo.DispatcherStats(ctx, s.DB)
}

func (s *OrderService) publish(ctx context.Context, typ string, o *domain.Order) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, events.FromOrder(typ, o, s.now())); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("event", typ).Uint("order_id", o.ID).Msg("publish order event")
	}
}
