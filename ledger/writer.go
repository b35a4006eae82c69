/*
writer.go - The single sanctioned wallet mutation path

PURPOSE:
  Every wallet mutation is built here. Writer validates the mutation and
  stamps identity and time; Apply then delegates the atomic
  balance-check + balance-write + entry-append to the Store, while Build
  hands the entry to callers that commit it inside a store transaction
  together with their own record.

WHY ONE PATH?
  Purchase, withdrawal, deposit confirmation, admin adjustment, and the
  mining accrual engine all produce different entry types but share the
  same invariants: no negative balance, exactly one entry per mutation,
  before/after snapshots taken inside the atomic unit. Funneling them
  through Writer keeps the invariants in one place.

IDEMPOTENCY:
  Callers that may retry after partial failure (accrual, deposit
  confirmation, withdrawal refunds) pass a deterministic IdempotencyKey.
  A duplicate key fails with ErrDuplicateIdempotencyKey and applies
  nothing, which retry-driven callers treat as "already done".
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mutation describes one requested balance change.
type Mutation struct {
	UserID         UserID
	Amount         decimal.Decimal // signed: credits positive, debits negative
	Type           EntryType
	Description    string
	Reference      string
	PerformedBy    string
	SubscriptionID SubscriptionID
	IdempotencyKey string
}

// Writer applies mutations through the Store.
type Writer struct {
	Store Store
	Clock Clock
}

func NewWriter(store Store) *Writer {
	return &Writer{Store: store, Clock: SystemClock{}}
}

// Build validates m and stamps identity and time without applying it.
// Callers whose entry must land atomically with a record of their own
// (purchase debit + subscription, withdrawal hold + request) hand the
// built entry to a transactional store method instead of Apply.
func (w *Writer) Build(m Mutation) (Entry, error) {
	if m.UserID == "" {
		return Entry{}, fmt.Errorf("apply mutation: user id required: %w", ErrInvalidAmount)
	}
	if !m.Type.Valid() {
		return Entry{}, fmt.Errorf("apply mutation: unknown entry type %q: %w", m.Type, ErrInvalidAmount)
	}
	if m.Amount.IsZero() {
		return Entry{}, fmt.Errorf("apply mutation: zero amount: %w", ErrInvalidAmount)
	}
	if (m.Type == EntryAdminCredit || m.Type == EntryAdminDebit) && m.Description == "" {
		return Entry{}, ErrReasonRequired
	}

	return Entry{
		ID:             EntryID(uuid.NewString()),
		UserID:         m.UserID,
		Type:           m.Type,
		Amount:         Round(m.Amount),
		Description:    m.Description,
		Reference:      m.Reference,
		PerformedBy:    m.PerformedBy,
		SubscriptionID: m.SubscriptionID,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      w.Clock.Now(),
	}, nil
}

// Apply validates m and applies it as one atomic unit.
// Returns the appended entry with balance snapshots filled in.
func (w *Writer) Apply(ctx context.Context, m Mutation) (Entry, error) {
	entry, err := w.Build(m)
	if err != nil {
		return Entry{}, err
	}

	applied, err := w.Store.Apply(ctx, entry)
	if err != nil {
		return Entry{}, err
	}

	zap.L().Debug("ledger mutation applied",
		zap.String("user_id", string(applied.UserID)),
		zap.String("type", string(applied.Type)),
		zap.String("amount", applied.Amount.String()),
		zap.String("balance_after", applied.BalanceAfter.String()))

	return applied, nil
}
