/*
store.go - Persistence interface for users, balances, and ledger entries

PURPOSE:
  Defines the contract between the ledger engine and the database.
  Implementations must make Apply a single indivisible unit: no observer
  may see a balance update without its ledger entry or vice versa.

APPEND-ONLY CONTRACT:
  Entries are append-only. There is no update or delete operation on the
  entries table. Corrections are refund/adjustment entries.

CONCURRENCY CONTRACT:
  Mutations to one user's wallet are serialized by the implementation
  (per-user lock in memory, immediate transactions in SQLite). Mutations
  to different users proceed independently.

IMPLEMENTATIONS:
  - store/memory: in-memory, for tests and dev
  - store/sqlite: durable, WAL mode
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store persists users and ledger entries.
type Store interface {
	// CreateUser registers a wallet owner with a zero balance.
	CreateUser(ctx context.Context, u User) error

	// User returns a user, or ErrNotFound.
	User(ctx context.Context, id UserID) (User, error)

	// Apply atomically: reads the current balance, rejects with
	// ErrInsufficientFunds if balance+e.Amount < 0, rejects with
	// ErrDuplicateIdempotencyKey if e.IdempotencyKey already exists,
	// writes the new balance, and appends e with BalanceBefore and
	// BalanceAfter filled in. Returns the completed entry.
	//
	// On any error nothing is applied.
	Apply(ctx context.Context, e Entry) (Entry, error)

	// Balance returns the current wallet balance, or ErrNotFound.
	Balance(ctx context.Context, id UserID) (decimal.Decimal, error)

	// Entries returns all ledger entries for a user, newest first.
	Entries(ctx context.Context, id UserID) ([]Entry, error)

	// EntryByIdempotencyKey returns the entry recorded under key, or
	// ErrNotFound. Retry-driven callers use it to learn what an earlier
	// run's mutation actually paid before repairing their own state.
	EntryByIdempotencyKey(ctx context.Context, key string) (Entry, error)

	// SumEntries returns the signed sum of all entry amounts for a user.
	// Used to reconcile the balance invariant: Balance == SumEntries.
	SumEntries(ctx context.Context, id UserID) (decimal.Decimal, error)
}
