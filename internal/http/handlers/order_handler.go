// Order HTTP handlers.
//
// This file exposes REST endpoints for orders:
//   - POST /orders                  (submit, idempotent with Idempotency-Key)
//   - GET  /orders/{id}             (fetch with items and total)
//   - POST /orders/{id}/restaurant  (assign a restaurant)
//   - POST /orders/{id}/status      (advance the lifecycle)
//
// Idempotency:
// If the client supplies an Idempotency-Key and a completed submission exists
// for (route, key), the stored order is returned with the original status and
// `Idempotency-Replayed: true`; nothing is created.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/http/middleware"
	"github.com/tbourn/go-foodcart-dispatch/internal/services"
)

//
// DTOs
//

// CreateOrderRequest documents the order submission payload. The handler
// passes the raw body to the validator, which reports the first violated
// rule; this type is not bound.
type CreateOrderRequest struct {
	Products      []OrderLine `json:"products"`
	FirstName     string      `json:"firstname" example:"Иван"`
	LastName      string      `json:"lastname,omitempty" example:"Петров"`
	PhoneNumber   string      `json:"phonenumber" example:"89991234567"`
	Address       string      `json:"address" example:"Москва, ул. Тверская, 1"`
	Comment       string      `json:"comment,omitempty" example:"домофон 12"`
	PaymentMethod string      `json:"payment_method,omitempty" enums:"cash,card,unspecified" example:"card"`
}

// OrderLine is one product line of CreateOrderRequest.
type OrderLine struct {
	Product  uint `json:"product" example:"1"`
	Quantity int  `json:"quantity" example:"2"`
}

// CreateOrderResponse is returned for an accepted submission. Status is
// always "ok"; the lifecycle position is OrderStatus.
type CreateOrderResponse struct {
	Status        string               `json:"status" example:"ok"`
	ID            uint                 `json:"id" example:"42"`
	FirstName     string               `json:"firstname"`
	LastName      string               `json:"lastname"`
	PhoneNumber   string               `json:"phonenumber" example:"+79991234567"`
	Address       string               `json:"address"`
	Comment       string               `json:"comment"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	OrderStatus   domain.OrderStatus   `json:"order_status" example:"new"`
	Items         []domain.OrderItem   `json:"items"`
	Total         decimal.Decimal      `json:"total" swaggertype:"string" example:"449.80"`
	CreatedAt     time.Time            `json:"created_at"`
}

func newCreateOrderResponse(o *domain.Order) CreateOrderResponse {
	return CreateOrderResponse{
		Status:        "ok",
		ID:            o.ID,
		FirstName:     o.FirstName,
		LastName:      o.LastName,
		PhoneNumber:   o.PhoneNumber,
		Address:       o.Address,
		Comment:       o.Comment,
		PaymentMethod: o.PaymentMethod,
		OrderStatus:   o.Status,
		Items:         o.Items,
		Total:         o.Total(),
		CreatedAt:     o.CreatedAt,
	}
}

// OrderResponse is an order with its computed total.
type OrderResponse struct {
	*domain.Order
	Total decimal.Decimal `json:"total" swaggertype:"string" example:"449.80"`
}

func newOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{Order: o, Total: o.Total()}
}

// AssignRestaurantRequest is the payload for POST /orders/{id}/restaurant.
type AssignRestaurantRequest struct {
	RestaurantID uint `json:"restaurant_id" binding:"required,min=1" example:"3"`
}

// UpdateStatusRequest is the payload for POST /orders/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=new restaurant courier completed" example:"courier"`
}

//
// Handlers
//

// CreateOrder godoc
// @ID          createOrder
// @Summary     Submit an order
// @Description Validates the payload (first failing rule wins), stores the order with prices fixed
// @Description at submission and geocodes the delivery address. Supports Idempotency-Key.
// @Tags        Orders
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateOrderRequest  true  "Order payload"
//
// @Success     201  {object}  handlers.CreateOrderResponse
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous submission"
// @Failure     400  {object}  handlers.OrderErrorResponse  "Validation failed"
// @Failure     500  {object}  handlers.ErrorResponse       "Internal error"
// @Router      /orders [post]
func (h *Handlers) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	if idemKey != "" && h.idem != nil {
		if rec, err := h.idem.Lookup(ctx, scope, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err := h.orders.Get(ctx, rec.OrderID); err == nil {
				c.Header(middleware.HeaderIdempotencyReplayed, "true")
				ok(c, rec.Status, newCreateOrderResponse(prev))
				return
			}
		}
	}

	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}

	o, err := h.orders.Create(ctx, raw)
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			failValidation(c, ve.Field, ve.Message)
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}

	// Best effort: a lost record only costs a duplicate on retry.
	if idemKey != "" && h.idem != nil {
		if err := h.idem.Save(ctx, scope, idemKey, o.ID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Uint("order_id", o.ID).Msg("idempotency record not saved")
		}
	}

	ok(c, http.StatusCreated, newCreateOrderResponse(o))
}

// GetOrder godoc
// @ID          getOrder
// @Summary     Get an order
// @Tags        Orders
// @Produce     json
// @Param       id   path  int  true  "Order ID"  minimum(1)
// @Success     200  {object}  handlers.OrderResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Order not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /orders/{id} [get]
func (h *Handlers) GetOrder(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		h.orderError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, newOrderResponse(o))
}

// AssignRestaurant godoc
// @ID          assignRestaurant
// @Summary     Assign a restaurant to an order
// @Description The restaurant must currently offer every product of the order. A new order moves
// @Description to the restaurant status. On rejection the order is unchanged.
// @Tags        Orders
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "Order ID"  minimum(1)
// @Param       body  body  handlers.AssignRestaurantRequest  true  "Restaurant"
// @Success     200  {object}  handlers.OrderResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Order or restaurant not found"
// @Failure     409  {object}  handlers.ErrorResponse "Restaurant cannot fulfil the order, or order completed"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /orders/{id}/restaurant [post]
func (h *Handlers) AssignRestaurant(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req AssignRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "restaurant_id required")
		return
	}
	o, err := h.orders.AssignRestaurant(c.Request.Context(), id, req.RestaurantID)
	if err != nil {
		h.orderError(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, newOrderResponse(o))
}

// UpdateOrderStatus godoc
// @ID          updateOrderStatus
// @Summary     Advance an order's status
// @Description Only forward moves along new → restaurant → courier → completed are accepted.
// @Description Moving to courier stamps called_at; completing stamps delivered_at.
// @Tags        Orders
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "Order ID"  minimum(1)
// @Param       body  body  handlers.UpdateStatusRequest  true  "Target status"
// @Success     200  {object}  handlers.OrderResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Order not found"
// @Failure     409  {object}  handlers.ErrorResponse "Status would not move forward"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /orders/{id}/status [post]
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id, okID := pathID(c, "id")
	if !okID {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be one of new, restaurant, courier, completed")
		return
	}
	o, err := h.orders.AdvanceStatus(c.Request.Context(), id, domain.OrderStatus(req.Status))
	if err != nil {
		h.orderError(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, newOrderResponse(o))
}

// orderError maps service errors of the order endpoints to responses;
// anything unrecognized is a 500 carrying fallback.
func (h *Handlers) orderError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
	case errors.Is(err, services.ErrRestaurantNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "restaurant not found")
	case errors.Is(err, services.ErrRestaurantUnavailable):
		fail(c, http.StatusConflict, ErrCodeRestaurantUnavailable, err.Error())
	case errors.Is(err, services.ErrStatusRegression):
		fail(c, http.StatusConflict, ErrCodeStatusRegression, err.Error())
	case errors.Is(err, services.ErrOrderCompleted):
		fail(c, http.StatusConflict, ErrCodeOrderCompleted, err.Error())
	case errors.Is(err, services.ErrOrderChanged):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}
