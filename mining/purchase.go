/*
purchase.go - Plan purchase and cancellation

PURPOSE:
  Purchasing debits the wallet and creates the subscription Active in a
  single store transaction; validation failures are rejected before any
  state is touched. Cancellation refunds invested principal minus
  already-paid profit through the same ledger path.
*/
package mining

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/plans"
)

// Service handles user-facing subscription operations.
type Service struct {
	Subs   SubscriptionStore
	Plans  plans.Registry
	Writer *ledger.Writer
	Clock  ledger.Clock
}

func NewService(subs SubscriptionStore, registry plans.Registry, writer *ledger.Writer) *Service {
	return &Service{Subs: subs, Plans: registry, Writer: writer, Clock: ledger.SystemClock{}}
}

// Purchase validates the amount against the plan's bounds and the wallet
// balance, debits the invested amount, and creates the subscription
// Active with its watermark at the start date.
//
// Fails with ErrPlanInactive, ErrInvalidAmount, or ErrInsufficientFunds.
func (s *Service) Purchase(ctx context.Context, userID ledger.UserID, planID plans.PlanID, amount decimal.Decimal) (Subscription, error) {
	plan, err := s.Plans.Plan(ctx, planID)
	if err != nil {
		return Subscription{}, err
	}
	if !plan.IsActive {
		return Subscription{}, fmt.Errorf("plan %s: %w", planID, ledger.ErrPlanInactive)
	}
	if !plan.InBounds(amount) {
		return Subscription{}, fmt.Errorf("amount %s outside plan bounds [%s, %s]: %w",
			amount, plan.MinDeposit, plan.MaxDeposit, ledger.ErrInvalidAmount)
	}

	now := s.Clock.Now()
	sub := Subscription{
		ID:             ledger.SubscriptionID(uuid.NewString()),
		UserID:         userID,
		PlanID:         planID,
		InvestedAmount: ledger.Round(amount),
		TotalEarned:    decimal.Zero,
		StartDate:      now,
		EndDate:        now.Add(plan.Duration()),
		LastAccrual:    now,
		Status:         StatusActive,
		CreatedAt:      now,
	}

	debit, err := s.Writer.Build(ledger.Mutation{
		UserID:         userID,
		Amount:         sub.InvestedAmount.Neg(),
		Type:           ledger.EntryPlanPurchase,
		Description:    fmt.Sprintf("Purchased %s mining plan", plan.Name),
		SubscriptionID: sub.ID,
	})
	if err != nil {
		return Subscription{}, err
	}

	// Debit and subscription commit together; a crash can never leave
	// the wallet charged for a position that does not exist.
	if _, err := s.Subs.CreateSubscriptionWithDebit(ctx, debit, sub); err != nil {
		return Subscription{}, fmt.Errorf("purchase plan: %w", err)
	}

	return sub, nil
}

// Cancel refunds invested principal minus already-paid profit (floored at
// zero) and marks the subscription Cancelled. Only Active subscriptions
// can be cancelled.
func (s *Service) Cancel(ctx context.Context, id ledger.SubscriptionID) (Subscription, error) {
	sub, err := s.Subs.Subscription(ctx, id)
	if err != nil {
		return Subscription{}, err
	}
	if sub.Status != StatusActive {
		return Subscription{}, fmt.Errorf("subscription %s is %s: %w", id, sub.Status, ledger.ErrInvalidState)
	}

	refund := sub.InvestedAmount.Sub(sub.TotalEarned)
	if refund.IsPositive() {
		if _, err := s.Writer.Apply(ctx, ledger.Mutation{
			UserID:         sub.UserID,
			Amount:         refund,
			Type:           ledger.EntryRefund,
			Description:    "Subscription cancelled - principal minus paid profit",
			SubscriptionID: sub.ID,
			IdempotencyKey: fmt.Sprintf("cancel-%s", sub.ID),
		}); err != nil {
			return Subscription{}, err
		}
	}

	sub.Status = StatusCancelled
	if err := s.Subs.UpdateSubscription(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("cancel subscription: %w", err)
	}
	return sub, nil
}

// UserSubscriptions returns all of a user's positions.
func (s *Service) UserSubscriptions(ctx context.Context, userID ledger.UserID) ([]Subscription, error) {
	return s.Subs.SubscriptionsByUser(ctx, userID)
}
