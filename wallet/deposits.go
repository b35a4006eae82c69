/*
Package wallet implements the user-facing wallet flows around the ledger:
deposit lifecycle, withdrawal lifecycle with admin approval, and admin
balance adjustments. All balance movement goes through ledger.Writer.

Deposit confirmation is an external event (a blockchain watcher or an
admin) delivered through ConfirmDeposit; no chain integration lives here.
*/
package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
)

// =============================================================================
// DEPOSIT
// =============================================================================

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositConfirmed DepositStatus = "confirmed"
	DepositFailed    DepositStatus = "failed"
	DepositCancelled DepositStatus = "cancelled"
)

type Deposit struct {
	ID            string
	UserID        ledger.UserID
	Amount        decimal.Decimal
	CryptoAddress string
	TxHash        string
	Status        DepositStatus
	FailureReason string
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

// DepositStore persists deposits.
type DepositStore interface {
	CreateDeposit(ctx context.Context, d Deposit) error
	Deposit(ctx context.Context, id string) (Deposit, error)
	DepositsByUser(ctx context.Context, userID ledger.UserID) ([]Deposit, error)
	UpdateDeposit(ctx context.Context, d Deposit) error
}

// Service handles deposit, withdrawal, and adjustment flows.
type Service struct {
	Deposits    DepositStore
	Withdrawals WithdrawalStore
	Writer      *ledger.Writer
	Clock       ledger.Clock
}

func NewService(deposits DepositStore, withdrawals WithdrawalStore, writer *ledger.Writer) *Service {
	return &Service{Deposits: deposits, Withdrawals: withdrawals, Writer: writer, Clock: ledger.SystemClock{}}
}

// CreateDeposit registers a pending deposit with a generated address.
// No balance change until confirmation.
func (s *Service) CreateDeposit(ctx context.Context, userID ledger.UserID, amount decimal.Decimal) (Deposit, error) {
	if !amount.IsPositive() {
		return Deposit{}, fmt.Errorf("deposit amount must be positive: %w", ledger.ErrInvalidAmount)
	}

	d := Deposit{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        ledger.Round(amount),
		CryptoAddress: generateDepositAddress(),
		Status:        DepositPending,
		CreatedAt:     s.Clock.Now(),
	}
	if err := s.Deposits.CreateDeposit(ctx, d); err != nil {
		return Deposit{}, err
	}
	return d, nil
}

// ConfirmDeposit credits the wallet and marks the deposit confirmed.
// Fails with ErrNotFound for a missing deposit and ErrInvalidState when
// the deposit was already processed.
func (s *Service) ConfirmDeposit(ctx context.Context, depositID string) (Deposit, error) {
	d, err := s.Deposits.Deposit(ctx, depositID)
	if err != nil {
		return Deposit{}, err
	}
	if d.Status != DepositPending {
		return Deposit{}, fmt.Errorf("deposit %s is %s: %w", depositID, d.Status, ledger.ErrInvalidState)
	}

	// The idempotency key makes a re-confirmation after a lost status
	// update credit-safe: the second Apply is rejected and we only
	// repair the deposit record.
	_, err = s.Writer.Apply(ctx, ledger.Mutation{
		UserID:         d.UserID,
		Amount:         d.Amount,
		Type:           ledger.EntryDeposit,
		Description:    fmt.Sprintf("Deposit confirmed - %s credited", d.Amount),
		Reference:      fmt.Sprintf("DEPOSIT-%s", d.ID),
		IdempotencyKey: fmt.Sprintf("deposit-%s", d.ID),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		return Deposit{}, err
	}

	now := s.Clock.Now()
	d.Status = DepositConfirmed
	d.ConfirmedAt = &now
	if err := s.Deposits.UpdateDeposit(ctx, d); err != nil {
		return Deposit{}, err
	}
	return d, nil
}

// RejectDeposit marks a pending deposit failed. No balance change.
func (s *Service) RejectDeposit(ctx context.Context, depositID, reason string) (Deposit, error) {
	d, err := s.Deposits.Deposit(ctx, depositID)
	if err != nil {
		return Deposit{}, err
	}
	if d.Status != DepositPending {
		return Deposit{}, fmt.Errorf("deposit %s is %s: %w", depositID, d.Status, ledger.ErrInvalidState)
	}

	d.Status = DepositFailed
	d.FailureReason = reason
	if err := s.Deposits.UpdateDeposit(ctx, d); err != nil {
		return Deposit{}, err
	}
	return d, nil
}

// UserDeposits returns a user's deposits, newest first.
func (s *Service) UserDeposits(ctx context.Context, userID ledger.UserID) ([]Deposit, error) {
	return s.Deposits.DepositsByUser(ctx, userID)
}

// generateDepositAddress returns a simulated Ethereum-style address:
// 20 random bytes, hex-encoded with an 0x prefix.
func generateDepositAddress() string {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "0x" + hex.EncodeToString([]byte(uuid.NewString()))[:40]
	}
	return "0x" + hex.EncodeToString(b)
}
