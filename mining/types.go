/*
Package mining implements investment subscriptions and profit accrual.

PURPOSE:
  A subscription is a user's position in a plan template: frozen invested
  principal, a running earned total, and an accrual watermark. The accrual
  engine in this package is the financial-correctness core of the product;
  everything it pays flows through the ledger package's single mutation
  path.

LIFECYCLE:
  Pending → Active → {Completed, Cancelled}

  Purchases create subscriptions Active directly (the debit is
  synchronous). Only Active subscriptions are scanned by the accrual
  engine. Completed and Cancelled are terminal.

SEE ALSO:
  - profit.go: Pure payout arithmetic
  - accrual.go: The per-tick accrual pass
  - scheduler.go: Periodic driver with injectable clock
  - purchase.go: Purchase and cancellation
*/
package mining

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/plans"
)

// =============================================================================
// SUBSCRIPTION
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status excludes the subscription from all
// future accrual scans.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// Subscription is one purchased plan position.
//
// InvestedAmount is frozen at purchase time even if the template's bounds
// change later. TotalEarned only grows. LastAccrual is the watermark: the
// point in time up to which profit has already been paid.
type Subscription struct {
	ID             ledger.SubscriptionID
	UserID         ledger.UserID
	PlanID         plans.PlanID
	InvestedAmount decimal.Decimal
	TotalEarned    decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
	LastAccrual    time.Time
	Status         Status
	CreatedAt      time.Time
}

// =============================================================================
// SUBSCRIPTION STORE
// =============================================================================

// SubscriptionStore persists subscriptions. Subscriptions are owned by
// their user and mutated only by the accrual engine (earned total,
// watermark, status) after creation. Never hard-deleted.
type SubscriptionStore interface {
	CreateSubscription(ctx context.Context, s Subscription) error

	// CreateSubscriptionWithDebit applies the purchase debit and inserts
	// the subscription as one atomic unit: a crash can never leave the
	// wallet charged without its position. On any error nothing is
	// applied. Returns the debit entry with balance snapshots filled in.
	CreateSubscriptionWithDebit(ctx context.Context, debit ledger.Entry, s Subscription) (ledger.Entry, error)

	// Subscription returns one subscription, or ledger.ErrNotFound.
	Subscription(ctx context.Context, id ledger.SubscriptionID) (Subscription, error)

	// SubscriptionsByUser returns all of a user's subscriptions, newest first.
	SubscriptionsByUser(ctx context.Context, userID ledger.UserID) ([]Subscription, error)

	// ActiveSubscriptions returns every subscription the accrual engine
	// must scan this tick.
	ActiveSubscriptions(ctx context.Context) ([]Subscription, error)

	// UpdateSubscription overwrites earned total, watermark, and status.
	UpdateSubscription(ctx context.Context, s Subscription) error
}
