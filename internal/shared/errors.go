package shared

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status change outside the legal graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrExceedsBalance indicates a payment larger than the invoice balance.
	ErrExceedsBalance = errors.New("payment exceeds invoice balance")
	// ErrAlreadySettled indicates a mutation against a fully paid invoice
	// or an already converted quotation.
	ErrAlreadySettled = errors.New("document already settled")
	// ErrInvalidDateRange indicates start/end or renewal date ordering violated.
	ErrInvalidDateRange = errors.New("invalid date range")
)
