/*
errors.go - Centralized error types for the wallet engine

PURPOSE:
  All error kinds in one place. Domain packages wrap these with context
  and HTTP handlers map them to status codes with errors.Is.

ERROR CATEGORIES:
  1. Funds errors      - InsufficientFunds, InvalidAmount
  2. Lookup errors     - NotFound, PlanInactive
  3. Lifecycle errors  - InvalidState (e.g. confirming a confirmed deposit)
  4. Persistence       - storage faults, surfaced as-is and wrapped
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientFunds is returned when a debit would drive the wallet
	// balance below zero. The balance is left unchanged.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero, mis-signed, or out-of-bounds
	// amounts. Rejected before any state is touched.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFound is returned when a referenced user, plan, deposit,
	// withdrawal, or subscription does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPlanInactive is returned when purchasing a deactivated plan.
	ErrPlanInactive = errors.New("plan inactive")

	// ErrInvalidState is returned for lifecycle violations, such as
	// confirming an already-confirmed deposit.
	ErrInvalidState = errors.New("invalid state")

	// ErrDuplicateIdempotencyKey is returned when an entry with the same
	// idempotency key already exists. Expected behavior for retries: the
	// original mutation stands and nothing is applied twice.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrReasonRequired is returned for admin adjustments without a
	// human-readable reason.
	ErrReasonRequired = errors.New("adjustment reason required")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports how far a debit overshot the balance.
type InsufficientFundsError struct {
	UserID    UserID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s: available %s, requested %s",
		e.UserID, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is caused by invalid caller
// input or state, as opposed to a storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrPlanInactive) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrReasonRequired)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
