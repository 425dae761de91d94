/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; the API layer maps these to
  HTTP status codes without string matching.

ERROR CATEGORIES:
  1. Validation errors - Deterministic, surfaced to the caller unchanged
  2. Concurrency errors - Transient, retried internally before surfacing
  3. Store errors - Storage-level failures

SEE ALSO:
  - processor.go: Produces these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIngredientNotFound is returned when the referenced ingredient id
	// does not exist in the catalog.
	ErrIngredientNotFound = errors.New("ingredient not found")

	// ErrIngredientRetired is returned when a movement targets a soft-retired
	// ingredient. History stays readable; new movements are rejected.
	ErrIngredientRetired = errors.New("ingredient is retired")

	// ErrInvalidQuantity is returned when a requested quantity is zero or
	// negative. Caller-side validation error, never retried.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidKind is returned when an adjustment names a kind other than
	// stock-in or stock-out. Waste entries go through ApplyWasteEntry.
	ErrInvalidKind = errors.New("kind must be stock-in or stock-out")

	// ErrMalformedCursor is returned when a pagination cursor cannot be
	// decoded. Cursors are opaque; only values handed out by ListEvents
	// are valid.
	ErrMalformedCursor = errors.New("malformed cursor")

	// ErrEmptyReason is returned when the reason is blank. The "Other"
	// sentinel with free text is validated by the caller; the ledger only
	// requires non-empty.
	ErrEmptyReason = errors.New("reason must not be empty")

	// ErrInsufficientStock is returned when an outbound movement would drive
	// CurrentStock negative. A business error, not a system fault.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict is returned when the optimistic concurrency retry budget
	// is exhausted under write contention. Transient, safe to retry.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrUnavailable is returned when the underlying storage is temporarily
	// unreachable. Transient, safe to retry with backoff.
	ErrUnavailable = errors.New("storage unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports how far short an outbound movement fell.
type InsufficientStockError struct {
	IngredientID IngredientID
	Available    Quantity
	Requested    Quantity
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %v, requested %v",
		e.IngredientID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// Shortfall returns how much the request exceeded availability.
func (e *InsufficientStockError) Shortfall() Quantity {
	return e.Requested.Sub(e.Available)
}

// ConflictError reports exhausted optimistic retries on one ingredient.
type ConflictError struct {
	IngredientID IngredientID
	Attempts     int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s after %d attempts", e.IngredientID, e.Attempts)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable)
}

// IsClientError returns true if the error is due to invalid caller input
// or a deterministic business rejection.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrEmptyReason) ||
		errors.Is(err, ErrMalformedCursor) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrIngredientRetired)
}

// IsNotFound returns true if the error indicates a missing ingredient.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIngredientNotFound)
}
