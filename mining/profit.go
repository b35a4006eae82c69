/*
profit.go - Pure payout arithmetic

PURPOSE:
  All profit math in one place, free of I/O, in exact decimal arithmetic
  at the wallet's fixed scale. Binary floating point would drift over
  thousands of intervals; decimal does not.

INTERVAL COUNTING:
  Strict floor division over whole elapsed minutes. A partial interval
  never pays early; the fractional remainder is discarded when the
  watermark advances, never banked.
*/
package mining

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/plans"
)

var hundred = decimal.NewFromInt(100)

// ProfitPerInterval returns invested * returnPct / 100 at wallet scale.
func ProfitPerInterval(invested, returnPct decimal.Decimal) decimal.Decimal {
	return ledger.Round(invested.Mul(returnPct).Div(hundred))
}

// IntervalsElapsed returns the number of whole payout intervals between
// from and to for the given unit. Returns 0 when to <= from.
func IntervalsElapsed(from, to time.Time, unit plans.DurationUnit) int64 {
	if !to.After(from) {
		return 0
	}
	elapsedMinutes := int64(to.Sub(from) / time.Minute)
	return elapsedMinutes / unit.Minutes()
}

// AccruedProfit returns the summed profit for n intervals.
func AccruedProfit(invested, returnPct decimal.Decimal, n int64) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return ProfitPerInterval(invested, returnPct).Mul(decimal.NewFromInt(n))
}
