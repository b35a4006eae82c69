/*
Package ledger provides the wallet balance engine.

PURPOSE:
  This package contains the core types and the single sanctioned path for
  mutating a user's wallet balance. Deposits, withdrawals, plan purchases,
  mining payouts, and admin adjustments all funnel through the same
  atomic mutation operation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: An immutable ledger record of one balance change
  - EntryType: What kind of mutation produced the entry
  - User: Wallet owner with the current balance
  - Clock: Injectable time source so tests can drive time deterministically

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified; corrections are new entries
  2. Precision: decimal.Decimal with a fixed scale of 8 fractional digits
  3. Auditability: Every entry carries before/after balance snapshots
  4. Single path: ledger.Writer is the only way to move a balance

SEE ALSO:
  - writer.go: The atomic mutation operation
  - store.go: Persistence interface
  - errors.go: Sentinel and structured errors
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the fixed number of fractional digits for all wallet amounts.
// Matches the decimal(18,8) columns of typical crypto balance schemas.
const Scale = 8

// Round normalizes an amount to the wallet scale.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// MustParseAmount parses a decimal string, returning zero on failure.
// Intended for constants and test fixtures, not user input.
func MustParseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return Round(d)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type EntryID string
type SubscriptionID string

// =============================================================================
// USER - Wallet owner
// =============================================================================

type User struct {
	ID        UserID
	Username  string
	Email     string
	Balance   decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - Immutable record of one balance mutation
// =============================================================================

type EntryType string

const (
	EntryDeposit      EntryType = "deposit"
	EntryWithdrawal   EntryType = "withdrawal"
	EntryPlanPurchase EntryType = "plan_purchase"
	EntryAccrual      EntryType = "accrual"
	EntryRefund       EntryType = "refund"
	EntryAdminCredit  EntryType = "admin_credit"
	EntryAdminDebit   EntryType = "admin_debit"
	EntryBonus        EntryType = "bonus"
	EntryFee          EntryType = "fee"
)

var knownEntryTypes = map[EntryType]bool{
	EntryDeposit:      true,
	EntryWithdrawal:   true,
	EntryPlanPurchase: true,
	EntryAccrual:      true,
	EntryRefund:       true,
	EntryAdminCredit:  true,
	EntryAdminDebit:   true,
	EntryBonus:        true,
	EntryFee:          true,
}

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool { return knownEntryTypes[t] }

// Entry is one immutable ledger record. BalanceBefore and BalanceAfter are
// snapshots taken inside the same atomic unit as the balance update, so
// replaying Amount over the entries always reconciles with the wallet.
type Entry struct {
	ID             EntryID
	UserID         UserID
	Type           EntryType
	Amount         decimal.Decimal // signed: credits positive, debits negative
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	Description    string
	Reference      string
	PerformedBy    string // admin username for admin actions, empty otherwise
	SubscriptionID SubscriptionID
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock abstracts wall-clock time so the accrual engine and scheduler can
// be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
