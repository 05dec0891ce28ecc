// Package handlers exposes the REST endpoints of the dispatch API:
//   - orders: submission, lookup, restaurant assignment, status changes
//   - dispatcher view: active orders with totals and restaurant rankings
//   - catalog: products, restaurants, availability matrix, menu updates
//   - coordinates: explicit re-geocoding of an address
//
// Handlers are transport-thin: they validate input, call application services
// and translate results into HTTP responses (including conditional responses
// and idempotent replays).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
	"github.com/tbourn/go-foodcart-dispatch/internal/services"
	"github.com/tbourn/go-foodcart-dispatch/internal/utils"
)

//
// Service contracts (context-aware)
//

// OrderService defines the order lifecycle consumed by HTTP handlers.
type OrderService interface {
	// Create validates a raw payload and persists the order.
	Create(ctx context.Context, raw []byte) (*domain.Order, error)
	// Get returns an order with its items.
	Get(ctx context.Context, id uint) (*domain.Order, error)
	// AssignRestaurant sets the order's restaurant if it covers every product.
	AssignRestaurant(ctx context.Context, orderID, restaurantID uint) (*domain.Order, error)
	// AdvanceStatus moves the order forward along its lifecycle.
	AdvanceStatus(ctx context.Context, orderID uint, status domain.OrderStatus) (*domain.Order, error)
	// DispatcherPage returns a page of active orders with rankings.
	DispatcherPage(ctx context.Context, page, pageSize int) ([]services.DispatcherOrder, int64, error)
	// DispatcherStats returns the inputs of the dispatcher ETag.
	DispatcherStats(ctx context.Context) (services.DispatcherSnapshot, error)
}

// CatalogService defines catalog reads and menu updates.
type CatalogService interface {
	Products(ctx context.Context, query string) ([]domain.Product, error)
	Restaurants(ctx context.Context, query string) ([]domain.Restaurant, error)
	Availability(ctx context.Context) (*services.AvailabilityMatrix, error)
	SetAvailability(ctx context.Context, restaurantID, productID uint, available bool) (*domain.MenuItem, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// CoordinateRefresher re-resolves an address and overwrites its cache entry.
type CoordinateRefresher interface {
	Refresh(ctx context.Context, address string) (geo.Resolution, error)
}

// IdempotencyStore records and finds completed order submissions.
// Lookup returns (nil, nil) when nothing unexpired is stored.
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, scope, key string, orderID uint, status int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. Idempotency may be nil, which disables
// replays.
type Handlers struct {
	orders      OrderService
	catalog     CatalogService
	coordinates CoordinateRefresher
	idem        IdempotencyStore
}

// New constructs Handlers bound to the given services.
func New(orders OrderService, catalog CatalogService, coordinates CoordinateRefresher, idem IdempotencyStore) *Handlers {
	return &Handlers{orders: orders, catalog: catalog, coordinates: coordinates, idem: idem}
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// pathID parses a positive integer path parameter, failing the request with
// 400 when it is malformed.
func pathID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return uint(n), true
}

// checkETag sets a weak ETag derived from (count, latest change) plus the
// given discriminators and reports whether the client's copy is current,
// in which case 304 has been written.
func checkETag(c *gin.Context, kind string, count int64, latest *time.Time, extra ...any) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d`, kind, count, ts)
	for _, e := range extra {
		etag += fmt.Sprintf(":%v", e)
	}
	etag += `"`
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
