// Catalog HTTP handlers.
//
//   - GET /products                                 (offered products, optional search)
//   - GET /products/availability                    (product × restaurant matrix)
//   - GET /restaurants                              (restaurants, optional search)
//   - PUT /restaurants/{id}/menu/{product_id}       (set availability)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/services"
)

// ProductsResponse lists products.
type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

// RestaurantsResponse lists restaurants.
type RestaurantsResponse struct {
	Restaurants []domain.Restaurant `json:"restaurants"`
}

// SetAvailabilityRequest is the payload for the menu update endpoint.
type SetAvailabilityRequest struct {
	// Availability is required; a pointer distinguishes false from absent.
	Availability *bool `json:"availability" binding:"required" example:"true"`
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List offered products
// @Description Products at least one restaurant currently offers, with category and price.
// @Description A non-empty q filters by name, description and category, best match first.
// @Description Unfiltered listings support weak ETag via If-None-Match.
// @Tags        Catalog
// @Produce     json
// @Param       q              query   string  false "Search text"  example(пицца)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object} handlers.ProductsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	ctx := c.Request.Context()
	q := strings.TrimSpace(c.Query("q"))

	if q == "" {
		if count, latest, err := h.catalog.Stats(ctx); err == nil {
			if checkETag(c, "products", count, latest) {
				return
			}
		}
	}

	items, err := h.catalog.Products(ctx, q)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ProductsResponse{Products: items})
}

// ProductAvailability godoc
// @ID          productAvailability
// @Summary     Availability matrix
// @Description For every product, one flag per restaurant (restaurants ordered by name); a missing
// @Description menu entry reads as unavailable.
// @Tags        Catalog
// @Produce     json
// @Success     200  {object} services.AvailabilityMatrix
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /products/availability [get]
func (h *Handlers) ProductAvailability(c *gin.Context) {
	m, err := h.catalog.Availability(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, m)
}

// ListRestaurants godoc
// @ID          listRestaurants
// @Summary     List restaurants
// @Description Restaurants ordered by name; a non-empty q filters by name and address.
// @Tags        Catalog
// @Produce     json
// @Param       q    query  string  false "Search text"
// @Success     200  {object} handlers.RestaurantsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /restaurants [get]
func (h *Handlers) ListRestaurants(c *gin.Context) {
	items, err := h.catalog.Restaurants(c.Request.Context(), strings.TrimSpace(c.Query("q")))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RestaurantsResponse{Restaurants: items})
}

// SetMenuAvailability godoc
// @ID          setMenuAvailability
// @Summary     Set a product's availability at a restaurant
// @Description Creates the menu entry if missing. Affects coverage of subsequent assignments and rankings.
// @Tags        Catalog
// @Accept      json
// @Produce     json
// @Param       id          path  int  true  "Restaurant ID"  minimum(1)
// @Param       product_id  path  int  true  "Product ID"     minimum(1)
// @Param       body        body  handlers.SetAvailabilityRequest  true  "Availability"
// @Success     200  {object} domain.MenuItem
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Restaurant or product not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /restaurants/{id}/menu/{product_id} [put]
func (h *Handlers) SetMenuAvailability(c *gin.Context) {
	rid, okID := pathID(c, "id")
	if !okID {
		return
	}
	pid, okID := pathID(c, "product_id")
	if !okID {
		return
	}
	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "availability required")
		return
	}

	item, err := h.catalog.SetAvailability(c.Request.Context(), rid, pid, *req.Availability)
	switch {
	case errors.Is(err, services.ErrRestaurantNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "restaurant not found")
	case errors.Is(err, services.ErrProductNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
	default:
		ok(c, http.StatusOK, item)
	}
}
