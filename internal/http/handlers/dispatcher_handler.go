// Dispatcher HTTP handler.
//
//   - GET /dispatcher/orders  (active orders with totals and restaurant rankings)
//
// The weak ETag covers the active order, restaurant and menu counts, the
// latest change to orders, restaurants, menus and cached coordinates, and the
// requested page. Ranking can geocode restaurant addresses, so the tag sent
// with a 200 is taken after the page is built.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-foodcart-dispatch/internal/services"
)

// DispatcherResponse wraps a page of active orders and pagination information.
type DispatcherResponse struct {
	Orders     []services.DispatcherOrder `json:"orders"`
	Pagination Pagination                 `json:"pagination"`
}

// ListDispatcherOrders godoc
// @ID          listDispatcherOrders
// @Summary     Dispatcher view
// @Description Returns non-completed orders, oldest first, each with its total and the restaurants able
// @Description to fulfil it ordered by distance (unknown distances last, as null).
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Dispatcher
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.DispatcherResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /dispatcher/orders [get]
func (h *Handlers) ListDispatcherOrders(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// A client tag is only issued after ranking, when every address it
	// needed is cached, so a matching pre-check means nothing moved since.
	if snap, err := h.orders.DispatcherStats(ctx); err == nil {
		if dispatcherETag(c, snap, page, pageSize) {
			return
		}
	}

	items, total, err := h.orders.DispatcherPage(ctx, page, pageSize)
	c.Writer.Header().Del("ETag")
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if snap, err := h.orders.DispatcherStats(ctx); err == nil {
		if dispatcherETag(c, snap, page, pageSize) {
			return
		}
	}
	ok(c, http.StatusOK, DispatcherResponse{
		Orders:     items,
		Pagination: newPagination(page, pageSize, total),
	})
}

func dispatcherETag(c *gin.Context, snap services.DispatcherSnapshot, page, pageSize int) bool {
	return checkETag(c, "dispatcher", snap.ActiveOrders, snap.Latest,
		snap.Restaurants, snap.MenuItems, page, pageSize)
}
