// Coordinate refresh handler.
//
//   - POST /coordinates/refresh  (re-geocode an address, overwriting its cache entry)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
	"github.com/tbourn/go-foodcart-dispatch/internal/services"
)

// RefreshCoordinatesRequest is the payload for POST /coordinates/refresh.
type RefreshCoordinatesRequest struct {
	Address string `json:"address" binding:"required" example:"Москва, ул. Тверская, 1"`
}

// RefreshCoordinatesResponse reports the new cache entry. Lat and Lon are
// null unless Status is "resolved"; Error carries the provider failure.
type RefreshCoordinatesResponse struct {
	Address    string     `json:"address"`
	Status     string     `json:"status" enums:"resolved,failed,unresolved" example:"resolved"`
	Lat        *float64   `json:"lat"`
	Lon        *float64   `json:"lon"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func newRefreshResponse(address string, res geo.Resolution) RefreshCoordinatesResponse {
	out := RefreshCoordinatesResponse{
		Address: geo.NormalizeAddress(address),
		Status:  res.Status.String(),
	}
	if p := res.Coordinate(); p != nil {
		out.Lat, out.Lon = &p.Lat, &p.Lon
	}
	if !res.ResolvedAt.IsZero() {
		at := res.ResolvedAt
		out.ResolvedAt = &at
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

// RefreshCoordinates godoc
// @ID          refreshCoordinates
// @Summary     Re-geocode an address
// @Description Calls the geocoder unconditionally and overwrites the cached entry, including a
// @Description previously failed one. A provider failure is stored and reported with status "failed".
// @Tags        Coordinates
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RefreshCoordinatesRequest  true  "Address"
// @Success     200  {object} handlers.RefreshCoordinatesResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Cache write failed"
// @Router      /coordinates/refresh [post]
func (h *Handlers) RefreshCoordinates(c *gin.Context) {
	var req RefreshCoordinatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address required")
		return
	}
	res, err := h.coordinates.Refresh(c.Request.Context(), req.Address)
	switch {
	case errors.Is(err, services.ErrEmptyAddress):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address required")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeGeocodeFailed, err.Error())
	default:
		ok(c, http.StatusOK, newRefreshResponse(req.Address, res))
	}
}
