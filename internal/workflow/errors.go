package workflow

import "errors"

var (
	// ErrOrderNotFound covers both missing and soft-deleted orders;
	// callers render it as a domain message, never as an HTTP error.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderCompleted marks an idempotent late retry against a
	// finalized order. Distinct from not-found because callers render
	// different user-facing text.
	ErrOrderCompleted = errors.New("order already completed")

	// ErrCodeMismatch covers wrong code, absent confirmation and
	// expired confirmation alike. Collapsing them keeps responses from
	// leaking whether an order exists.
	ErrCodeMismatch = errors.New("confirmation code mismatch")
)
