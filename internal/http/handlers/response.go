package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-foodcart-dispatch/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint. Code is one of the
// ErrCode constants; RequestID echoes X-Request-ID.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"not_found"`
	Message   string `json:"message" example:"order not found"`
}

// OrderErrorResponse is returned for rejected order submissions. Order-form
// clients read "error"; Field names the payload key that failed.
type OrderErrorResponse struct {
	ErrorResponse
	Error string `json:"error" example:"Введен некорректный номер телефона."`
	Field string `json:"field,omitempty" example:"phonenumber"`
}

func envelope(c *gin.Context, code, msg string) ErrorResponse {
	return ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}
}

// fail aborts with an ErrorResponse. 5xx are logged at error level and
// conflicts at info, both through the request logger; other client errors
// are left to the access log.
func fail(c *gin.Context, status int, code, msg string) {
	switch lg := middleware.LoggerFrom(c); {
	case status >= http.StatusInternalServerError:
		lg.Error().Int("status", status).Str("code", code).Str("message", msg).Msg("request failed")
	case status == http.StatusConflict:
		lg.Info().Str("code", code).Str("resource_id", c.Param("id")).Msg(msg)
	}
	c.AbortWithStatusJSON(status, envelope(c, code, msg))
}

// Fail is fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failValidation aborts with 400 and an OrderErrorResponse.
func failValidation(c *gin.Context, field, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, OrderErrorResponse{
		ErrorResponse: envelope(c, ErrCodeValidation, msg),
		Error:         msg,
		Field:         field,
	})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
