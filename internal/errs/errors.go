// Package errs defines the typed failure modes of the payment-plan engine.
// Each error carries the offending identifiers and the legal range so the
// caller can present an actionable message. None are retried automatically.
package errs

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tidecrm/tidecrm/validation"
)

// ValidationError aggregates per-field violations on an input payload.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d violation(s)", len(e.Violations))
}

// Invalid reports a single-field validation failure.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Violations: validation.Violations{field: reason}}
}

// InvalidAmountError signals an amount outside its legal range
// (e.g. cash_in greater than unit_price, or a non-positive payment).
type InvalidAmountError struct {
	Field  string
	Amount decimal.Decimal
	Max    decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount for %s: %s (max %s)", e.Field, e.Amount, e.Max)
}

// InvalidScheduleError signals unusable schedule parameters, e.g. count < 1.
type InvalidScheduleError struct {
	Count  int
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule (count=%d): %s", e.Count, e.Reason)
}

// IncompleteScheduleError signals a custom schedule with missing entries.
type IncompleteScheduleError struct {
	MissingIndexes []int
}

func (e *IncompleteScheduleError) Error() string {
	return fmt.Sprintf("incomplete schedule: missing dates at indexes %v", e.MissingIndexes)
}

// ObligationNotFoundError signals a settlement target that does not exist.
// Kind is "sale", "installment" or "recurring".
type ObligationNotFoundError struct {
	Kind string
	ID   uint
}

func (e *ObligationNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// ObligationAlreadySettledError signals a payment applied to a target that
// accepts no further money (paid/cancelled obligation, completed/cancelled plan).
type ObligationAlreadySettledError struct {
	Kind   string
	ID     uint
	Status string
}

func (e *ObligationAlreadySettledError) Error() string {
	return fmt.Sprintf("%s %d already settled (status %s)", e.Kind, e.ID, e.Status)
}

// AmountExceedsRemainingError signals a payment larger than what is owed.
// Remaining is the largest amount the caller may legally apply.
type AmountExceedsRemainingError struct {
	Kind      string
	ID        uint
	Amount    decimal.Decimal
	Remaining decimal.Decimal
}

func (e *AmountExceedsRemainingError) Error() string {
	return fmt.Sprintf("amount %s exceeds remaining %s on %s %d", e.Amount, e.Remaining, e.Kind, e.ID)
}

// ConcurrentModificationError signals a lost optimistic-lock race on an
// obligation or plan row. The operation was rolled back; the caller must
// re-read before deciding whether to resubmit.
type ConcurrentModificationError struct {
	Kind string
	ID   uint
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %d", e.Kind, e.ID)
}
