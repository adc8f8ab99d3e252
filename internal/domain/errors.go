package domain

import "errors"

var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidState        = errors.New("order cannot be edited in its current status")
	ErrConcurrencyConflict = errors.New("order was updated by another process")
	ErrOrderNotFound       = errors.New("order not found")
	ErrCustomerNotFound    = errors.New("customer not found")
)
