package domain

import "errors"

var (
	// ErrNotFound is returned when a case or guard does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvariantViolation marks a logic defect; the transaction must stop.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
)
