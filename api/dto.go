/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures decoupling the domain model from the API contract.
  Monetary fields are JSON strings so the fixed-scale decimals round-trip
  exactly; clients never see binary floating point.

NAMING CONVENTION:
  - *DTO: response types
  - *Request: request body types
*/
package api

import (
	"time"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/mining"
	"github.com/hashvault/mining-engine/plans"
	"github.com/hashvault/mining-engine/wallet"
)

// =============================================================================
// USERS / BALANCE
// =============================================================================

type CreateUserRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Balance   string `json:"balance"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type BalanceDTO struct {
	UserID  string `json:"user_id"`
	Balance string `json:"balance"`
}

type EntryDTO struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	BalanceBefore  string `json:"balance_before"`
	BalanceAfter   string `json:"balance_after"`
	Description    string `json:"description,omitempty"`
	Reference      string `json:"reference,omitempty"`
	PerformedBy    string `json:"performed_by,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toUserDTO(u ledger.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		Email:     u.Email,
		Balance:   u.Balance.String(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:             string(e.ID),
		Type:           string(e.Type),
		Amount:         e.Amount.String(),
		BalanceBefore:  e.BalanceBefore.String(),
		BalanceAfter:   e.BalanceAfter.String(),
		Description:    e.Description,
		Reference:      e.Reference,
		PerformedBy:    e.PerformedBy,
		SubscriptionID: string(e.SubscriptionID),
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// PLANS
// =============================================================================

type PlanDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	MinDeposit       string `json:"min_deposit"`
	MaxDeposit       string `json:"max_deposit"`
	ReturnPercentage string `json:"return_percentage"`
	DurationValue    int    `json:"duration_value"`
	DurationUnit     string `json:"duration_unit"`
	HashRate         string `json:"hash_rate"`
	IsActive         bool   `json:"is_active"`
}

type CreatePlanRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	MinDeposit       string `json:"min_deposit"`
	MaxDeposit       string `json:"max_deposit"`
	ReturnPercentage string `json:"return_percentage"`
	DurationValue    int    `json:"duration_value"`
	DurationUnit     string `json:"duration_unit"`
	HashRate         string `json:"hash_rate"`
	IsActive         *bool  `json:"is_active"`
}

type UpdatePlanRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	MinDeposit       *string `json:"min_deposit"`
	MaxDeposit       *string `json:"max_deposit"`
	ReturnPercentage *string `json:"return_percentage"`
	DurationValue    *int    `json:"duration_value"`
	DurationUnit     *string `json:"duration_unit"`
	HashRate         *string `json:"hash_rate"`
	IsActive         *bool   `json:"is_active"`
}

func toPlanDTO(t plans.Template) PlanDTO {
	return PlanDTO{
		ID:               string(t.ID),
		Name:             t.Name,
		Description:      t.Description,
		MinDeposit:       t.MinDeposit.String(),
		MaxDeposit:       t.MaxDeposit.String(),
		ReturnPercentage: t.ReturnPercentage.String(),
		DurationValue:    t.DurationValue,
		DurationUnit:     string(t.DurationUnit),
		HashRate:         t.HashRate.String(),
		IsActive:         t.IsActive,
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

type PurchaseRequest struct {
	PlanID string `json:"plan_id"`
	Amount string `json:"amount"`
}

type SubscriptionDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	PlanID         string `json:"plan_id"`
	InvestedAmount string `json:"invested_amount"`
	TotalEarned    string `json:"total_earned"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	LastAccrual    string `json:"last_accrual"`
	Status         string `json:"status"`
}

func toSubscriptionDTO(s mining.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:             string(s.ID),
		UserID:         string(s.UserID),
		PlanID:         string(s.PlanID),
		InvestedAmount: s.InvestedAmount.String(),
		TotalEarned:    s.TotalEarned.String(),
		StartDate:      s.StartDate.Format(time.RFC3339),
		EndDate:        s.EndDate.Format(time.RFC3339),
		LastAccrual:    s.LastAccrual.Format(time.RFC3339),
		Status:         string(s.Status),
	}
}

// =============================================================================
// DEPOSITS / WITHDRAWALS
// =============================================================================

type DepositRequest struct {
	Amount string `json:"amount"`
}

type DepositDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Amount        string `json:"amount"`
	CryptoAddress string `json:"crypto_address"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	ConfirmedAt   string `json:"confirmed_at,omitempty"`
}

type WithdrawalRequest struct {
	Amount        string `json:"amount"`
	WalletAddress string `json:"wallet_address"`
}

type WithdrawalDTO struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Amount        string `json:"amount"`
	WalletAddress string `json:"wallet_address"`
	Status        string `json:"status"`
	RejectReason  string `json:"reject_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
}

func toDepositDTO(d wallet.Deposit) DepositDTO {
	dto := DepositDTO{
		ID:            d.ID,
		UserID:        string(d.UserID),
		Amount:        d.Amount.String(),
		CryptoAddress: d.CryptoAddress,
		Status:        string(d.Status),
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
	if d.ConfirmedAt != nil {
		dto.ConfirmedAt = d.ConfirmedAt.Format(time.RFC3339)
	}
	return dto
}

func toWithdrawalDTO(w wallet.Withdrawal) WithdrawalDTO {
	dto := WithdrawalDTO{
		ID:            w.ID,
		UserID:        string(w.UserID),
		Amount:        w.Amount.String(),
		WalletAddress: w.WalletAddress,
		Status:        string(w.Status),
		RejectReason:  w.RejectReason,
		CreatedAt:     w.CreatedAt.Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		dto.ProcessedAt = w.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ADMIN
// =============================================================================

type AdjustRequest struct {
	Amount string `json:"amount"`
	Kind   string `json:"kind"` // "credit" or "debit"
	Reason string `json:"reason"`
	Admin  string `json:"admin"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type AccrualRunDTO struct {
	Scanned   int `json:"scanned"`
	Paid      int `json:"paid"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
