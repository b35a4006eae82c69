/*
accrual.go - The per-tick accrual pass

PURPOSE:
  For every Active subscription: determine how many whole payout intervals
  elapsed since the watermark, credit them as ONE aggregated wallet
  mutation with ONE ledger entry, advance the watermark to now, and
  transition ended subscriptions to Completed with a final
  principal+profit payout.

CORRECTNESS RULES:
  - Floor division: partial intervals never pay early.
  - Missed ticks: n missed intervals are paid in one aggregated credit,
    then the watermark jumps to now (not interval-by-interval), so the
    next elapsed-time computation stays exact regardless of downtime.
  - Failure isolation: an error on one subscription is logged and leaves
    its watermark unchanged; the shortfall is retried next tick, and
    every other subscription still processes.
  - Idempotency: each credit carries a key derived from the watermark it
    pays from. If the credit landed on a previous run but the
    subscription update was lost, the retry's duplicate key tells us the
    money already moved; the recorded entry's amount then drives the
    state repair, on the interval path and on completion alike, so the
    replay neither pays twice nor swallows unpaid intervals.

CONCURRENCY:
  One pass runs at a time, sequentially over subscriptions. Each
  subscription's payout is its own atomic ledger mutation, so a crash
  mid-pass loses no completed work. The pass checks ctx between
  subscriptions so shutdown never interrupts an in-flight mutation.
*/
package mining

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/plans"
)

// Accruer runs accrual passes over active subscriptions.
type Accruer struct {
	Subs   SubscriptionStore
	Plans  plans.Registry
	Writer *ledger.Writer
	Clock  ledger.Clock
}

func NewAccruer(subs SubscriptionStore, registry plans.Registry, writer *ledger.Writer) *Accruer {
	return &Accruer{Subs: subs, Plans: registry, Writer: writer, Clock: ledger.SystemClock{}}
}

// Report summarizes one accrual pass.
type Report struct {
	Scanned   int
	Paid      int
	Completed int
	Skipped   int
	Failed    int
}

type accrualOutcome int

const (
	outcomeSkipped accrualOutcome = iota
	outcomePaid
	outcomeCompleted
)

// RunOnce executes a single accrual pass at the injected clock's now.
// Per-subscription failures are counted and logged, never propagated.
func (a *Accruer) RunOnce(ctx context.Context) (Report, error) {
	now := a.Clock.Now()

	subs, err := a.Subs.ActiveSubscriptions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list active subscriptions: %w", err)
	}

	report := Report{Scanned: len(subs)}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := a.process(ctx, now, sub)
		if err != nil {
			report.Failed++
			zap.L().Error("accrual failed, will retry next tick",
				zap.String("subscription_id", string(sub.ID)),
				zap.String("user_id", string(sub.UserID)),
				zap.Error(err))
			continue
		}
		switch outcome {
		case outcomePaid:
			report.Paid++
		case outcomeCompleted:
			report.Completed++
		default:
			report.Skipped++
		}
	}

	if report.Paid > 0 || report.Completed > 0 || report.Failed > 0 {
		zap.L().Info("accrual pass completed",
			zap.Int("scanned", report.Scanned),
			zap.Int("paid", report.Paid),
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed))
	}
	return report, nil
}

func (a *Accruer) process(ctx context.Context, now time.Time, sub Subscription) (accrualOutcome, error) {
	plan, err := a.Plans.Plan(ctx, sub.PlanID)
	if err != nil {
		return outcomeSkipped, fmt.Errorf("load plan %s: %w", sub.PlanID, err)
	}

	if !now.Before(sub.EndDate) {
		return a.complete(ctx, sub, plan)
	}

	n := IntervalsElapsed(sub.LastAccrual, now, plan.DurationUnit)
	if n == 0 {
		return outcomeSkipped, nil
	}

	profit := AccruedProfit(sub.InvestedAmount, plan.ReturnPercentage, n)
	if profit.IsZero() {
		// Sub-scale position: each interval rounds to zero, so advancing
		// the watermark without an entry loses nothing.
		sub.LastAccrual = now
		return outcomeSkipped, a.Subs.UpdateSubscription(ctx, sub)
	}

	key := watermarkKey(sub)
	paid, err := a.credit(ctx, ledger.Mutation{
		UserID:         sub.UserID,
		Amount:         profit,
		Type:           ledger.EntryAccrual,
		Description:    fmt.Sprintf("Mining profit from %s (%d interval(s))", plan.Name, n),
		SubscriptionID: sub.ID,
		IdempotencyKey: key,
	})
	if err != nil {
		return outcomeSkipped, err
	}

	if paid {
		sub.TotalEarned = sub.TotalEarned.Add(profit)
		sub.LastAccrual = now
	} else {
		// An earlier run credited from this watermark but its
		// subscription update was lost. The retry's now may cover more
		// intervals than that credit did, so state advances by what the
		// recorded entry actually paid; anything beyond it is still
		// unpaid and settles on the next pass under a fresh key.
		zap.L().Warn("accrual credit already applied, reconciling from ledger",
			zap.String("subscription_id", string(sub.ID)))
		if err := a.reconcileReplay(ctx, &sub, plan, key); err != nil {
			return outcomeSkipped, err
		}
	}

	if err := a.Subs.UpdateSubscription(ctx, sub); err != nil {
		return outcomeSkipped, fmt.Errorf("update subscription: %w", err)
	}
	return outcomePaid, nil
}

// watermarkKey is the idempotency key of the credit paying from the
// subscription's current watermark.
func watermarkKey(sub Subscription) string {
	return fmt.Sprintf("accrual-%s-%d", sub.ID, sub.LastAccrual.UTC().Unix())
}

// reconcileReplay advances sub's earned total and watermark by exactly
// what the entry recorded under key paid.
func (a *Accruer) reconcileReplay(ctx context.Context, sub *Subscription, plan plans.Template, key string) error {
	entry, err := a.Writer.Store.EntryByIdempotencyKey(ctx, key)
	if err != nil {
		return fmt.Errorf("load replayed credit %s: %w", key, err)
	}

	per := ProfitPerInterval(sub.InvestedAmount, plan.ReturnPercentage)
	intervals := entry.Amount.Div(per).IntPart()
	if intervals < 1 {
		return fmt.Errorf("replayed credit %s paid %s, below one interval of %s: %w",
			key, entry.Amount, per, ledger.ErrInvalidState)
	}

	sub.TotalEarned = sub.TotalEarned.Add(entry.Amount)
	sub.LastAccrual = sub.LastAccrual.Add(time.Duration(intervals) * plan.DurationUnit.Interval())
	return nil
}

// complete pays the unpaid intervals up to EndDate plus the invested
// principal in one mutation and marks the subscription Completed.
//
// The watermark the subscription carries here may be stale: an earlier
// interval credit can have landed while its subscription update was
// lost. Whatever the entry under the watermark's key already paid is
// subtracted from the final payout, so those intervals never pay twice.
func (a *Accruer) complete(ctx context.Context, sub Subscription, plan plans.Template) (accrualOutcome, error) {
	n := IntervalsElapsed(sub.LastAccrual, sub.EndDate, plan.DurationUnit)
	profit := AccruedProfit(sub.InvestedAmount, plan.ReturnPercentage, n)

	unpaid := profit
	replayed, err := a.Writer.Store.EntryByIdempotencyKey(ctx, watermarkKey(sub))
	switch {
	case err == nil:
		unpaid = unpaid.Sub(replayed.Amount)
		if unpaid.IsNegative() {
			unpaid = decimal.Zero
		}
	case !errors.Is(err, ledger.ErrNotFound):
		return outcomeSkipped, fmt.Errorf("check replayed credit: %w", err)
	}

	payout := sub.InvestedAmount.Add(unpaid)

	paid, err := a.credit(ctx, ledger.Mutation{
		UserID:         sub.UserID,
		Amount:         payout,
		Type:           ledger.EntryAccrual,
		Description:    fmt.Sprintf("%s completed - principal + final profit", plan.Name),
		SubscriptionID: sub.ID,
		IdempotencyKey: fmt.Sprintf("accrual-%s-complete", sub.ID),
	})
	if err != nil {
		return outcomeSkipped, err
	}
	if !paid {
		zap.L().Warn("completion payout already applied, finalizing state only",
			zap.String("subscription_id", string(sub.ID)))
	}

	// TotalEarned reflects everything the term paid, including a
	// replayed credit whose earlier bookkeeping was lost.
	sub.TotalEarned = sub.TotalEarned.Add(profit)
	sub.LastAccrual = sub.EndDate
	sub.Status = StatusCompleted
	if err := a.Subs.UpdateSubscription(ctx, sub); err != nil {
		return outcomeSkipped, fmt.Errorf("finalize subscription: %w", err)
	}
	return outcomeCompleted, nil
}

// credit applies m and reports whether money actually moved now.
// A duplicate idempotency key means a previous run's credit landed but
// its subscription update was lost; the caller then only repairs state.
func (a *Accruer) credit(ctx context.Context, m ledger.Mutation) (bool, error) {
	if _, err := a.Writer.Apply(ctx, m); err != nil {
		if errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			return false, nil
		}
		return false, fmt.Errorf("credit wallet: %w", err)
	}
	return true, nil
}
