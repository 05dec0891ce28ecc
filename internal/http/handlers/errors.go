// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case, mapped to responses through fail(). Generic
// codes mirror HTTP status semantics; domain codes name business rule
// rejections that the status alone cannot convey (a 409 may be a regression,
// an uncovered restaurant or a concurrent change).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "restaurant_unavailable",
//	  "message": "restaurant cannot fulfil the order"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited" // written by the rate limiter middleware
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation            = "validation_failed"
	ErrCodeRestaurantUnavailable = "restaurant_unavailable"
	ErrCodeStatusRegression      = "status_regression"
	ErrCodeOrderCompleted        = "order_completed"
	ErrCodeCreateFailed          = "create_failed"
	ErrCodeUpdateFailed          = "update_failed"
	ErrCodeListFailed            = "list_failed"
	ErrCodeGeocodeFailed         = "geocode_failed"
)
