/*
withdrawals.go - Withdrawal request / approval lifecycle

PURPOSE:
  A withdrawal request debits the wallet immediately so the funds are
  held while an admin decides; the hold and the request record are
  written in one store transaction. Approval finalizes with no further
  balance change; rejection refunds through the ledger path.
*/
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
)

// MinWithdrawal is the smallest amount a user may withdraw.
var MinWithdrawal = decimal.NewFromInt(10)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalRejected   WithdrawalStatus = "rejected"
)

type Withdrawal struct {
	ID            string
	UserID        ledger.UserID
	Amount        decimal.Decimal
	WalletAddress string
	Status        WithdrawalStatus
	RejectReason  string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// WithdrawalStore persists withdrawals.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, w Withdrawal) error

	// CreateWithdrawalWithHold applies the hold debit and inserts the
	// pending request as one atomic unit: a crash can never leave funds
	// held without a request record. On any error nothing is applied.
	CreateWithdrawalWithHold(ctx context.Context, hold ledger.Entry, w Withdrawal) (ledger.Entry, error)
	Withdrawal(ctx context.Context, id string) (Withdrawal, error)
	WithdrawalsByUser(ctx context.Context, userID ledger.UserID) ([]Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w Withdrawal) error
}

// RequestWithdrawal debits the wallet and records a pending withdrawal
// in one store transaction. Fails with ErrInvalidAmount below the
// minimum and ErrInsufficientFunds when the wallet cannot cover the
// hold; neither leaves partial state.
func (s *Service) RequestWithdrawal(ctx context.Context, userID ledger.UserID, amount decimal.Decimal, address string) (Withdrawal, error) {
	if amount.LessThan(MinWithdrawal) {
		return Withdrawal{}, fmt.Errorf("minimum withdrawal is %s: %w", MinWithdrawal, ledger.ErrInvalidAmount)
	}

	w := Withdrawal{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        ledger.Round(amount),
		WalletAddress: address,
		Status:        WithdrawalPending,
		CreatedAt:     s.Clock.Now(),
	}

	hold, err := s.Writer.Build(ledger.Mutation{
		UserID:      userID,
		Amount:      w.Amount.Neg(),
		Type:        ledger.EntryWithdrawal,
		Description: fmt.Sprintf("Withdrawal to %s", shortenAddress(address)),
		Reference:   fmt.Sprintf("WITHDRAWAL-%s", w.ID),
	})
	if err != nil {
		return Withdrawal{}, err
	}

	if _, err := s.Withdrawals.CreateWithdrawalWithHold(ctx, hold, w); err != nil {
		return Withdrawal{}, err
	}
	return w, nil
}

// ApproveWithdrawal finalizes a pending withdrawal. The funds were held
// at request time, so approval changes no balance.
func (s *Service) ApproveWithdrawal(ctx context.Context, id string) (Withdrawal, error) {
	w, err := s.Withdrawals.Withdrawal(ctx, id)
	if err != nil {
		return Withdrawal{}, err
	}
	if w.Status != WithdrawalPending {
		return Withdrawal{}, fmt.Errorf("withdrawal %s is %s: %w", id, w.Status, ledger.ErrInvalidState)
	}

	now := s.Clock.Now()
	w.Status = WithdrawalCompleted
	w.ProcessedAt = &now
	if err := s.Withdrawals.UpdateWithdrawal(ctx, w); err != nil {
		return Withdrawal{}, err
	}
	return w, nil
}

// RejectWithdrawal refunds the held amount and marks the request
// rejected. The refund is idempotent by key so a retried rejection
// cannot credit twice.
func (s *Service) RejectWithdrawal(ctx context.Context, id, reason string) (Withdrawal, error) {
	w, err := s.Withdrawals.Withdrawal(ctx, id)
	if err != nil {
		return Withdrawal{}, err
	}
	if w.Status != WithdrawalPending {
		return Withdrawal{}, fmt.Errorf("withdrawal %s is %s: %w", id, w.Status, ledger.ErrInvalidState)
	}

	_, err = s.Writer.Apply(ctx, ledger.Mutation{
		UserID:         w.UserID,
		Amount:         w.Amount,
		Type:           ledger.EntryRefund,
		Description:    fmt.Sprintf("Withdrawal rejected: %s", reason),
		Reference:      fmt.Sprintf("WITHDRAWAL-%s", w.ID),
		IdempotencyKey: fmt.Sprintf("withdrawal-refund-%s", w.ID),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		return Withdrawal{}, err
	}

	now := s.Clock.Now()
	w.Status = WithdrawalRejected
	w.RejectReason = reason
	w.ProcessedAt = &now
	if err := s.Withdrawals.UpdateWithdrawal(ctx, w); err != nil {
		return Withdrawal{}, err
	}
	return w, nil
}

// UserWithdrawals returns a user's withdrawals, newest first.
func (s *Service) UserWithdrawals(ctx context.Context, userID ledger.UserID) ([]Withdrawal, error) {
	return s.Withdrawals.WithdrawalsByUser(ctx, userID)
}

// shortenAddress renders an address as first-6...last-4 for ledger
// descriptions. Short or blank addresses pass through unchanged.
func shortenAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return "unknown"
	}
	if len(address) <= 14 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}
