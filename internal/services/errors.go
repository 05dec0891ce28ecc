// Package services defines the business logic for orders, restaurant
// matching and the catalog. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Order-related errors.
var (
	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrRestaurantNotFound indicates that the referenced restaurant does not exist.
	ErrRestaurantNotFound = errors.New("restaurant not found")

	// ErrProductNotFound indicates that the referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrRestaurantUnavailable is returned when a restaurant is assigned to an
	// order it cannot fully cover with currently available menu entries.
	// The order is left unchanged.
	ErrRestaurantUnavailable = errors.New("restaurant cannot fulfil the order")

	// ErrStatusRegression is returned for a status change that does not move
	// the order forward along its lifecycle.
	ErrStatusRegression = errors.New("order status can only move forward")

	// ErrOrderCompleted is returned when changing the restaurant of an order
	// that has already been delivered.
	ErrOrderCompleted = errors.New("order is already completed")

	// ErrOrderChanged is returned when the order moved on between read and
	// write; the caller may reload and retry.
	ErrOrderChanged = errors.New("order was modified concurrently")

	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("unknown order status")

	// ErrEmptyOrder is returned when coverage or ranking is requested for an
	// order without products.
	ErrEmptyOrder = errors.New("order has no products")

	// ErrEmptyAddress is returned when an address is blank after normalization.
	ErrEmptyAddress = errors.New("address is empty")
)

// ValidationError reports the first rule an order payload violated.
// Message is the user-facing text; Field and Code are stable identifiers.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
