/*
Package plans provides the investment plan catalog.

PURPOSE:
  Plan templates describe what users can buy: deposit bounds, the return
  percentage paid per interval, and how long the plan runs. The duration
  unit doubles as the payout interval length, so a Day plan pays once per
  day and a plan with DurationValue 30 runs for 30 payouts.

KEY CONCEPTS:
  - DurationUnit: closed enumeration {Minute, Hour, Day, Week, Month},
    validated at the boundary. Free-form strings never enter the core.
  - Interval length: each unit's fixed length in minutes. Month is a fixed
    43200-minute approximation rather than calendar arithmetic; the payout
    semantics depend on this staying fixed.
  - Template: read-mostly; admin edits never rewrite history because past
    payouts live in the ledger and invested amounts are frozen on the
    subscription.

SEE ALSO:
  - registry.go: Store interface for templates
  - seed.go: YAML catalog loading
  - mining/profit.go: Pure payout arithmetic built on these types
*/
package plans

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
)

type PlanID string

// =============================================================================
// DURATION UNIT - Closed enumeration, parsed at the boundary
// =============================================================================

type DurationUnit string

const (
	UnitMinute DurationUnit = "minute"
	UnitHour   DurationUnit = "hour"
	UnitDay    DurationUnit = "day"
	UnitWeek   DurationUnit = "week"
	UnitMonth  DurationUnit = "month"
)

// unitMinutes fixes each unit's interval length. Month is a deliberate
// 43200-minute (30-day) approximation, not calendar months.
var unitMinutes = map[DurationUnit]int64{
	UnitMinute: 1,
	UnitHour:   60,
	UnitDay:    1440,
	UnitWeek:   10080,
	UnitMonth:  43200,
}

// Minutes returns the payout interval length for this unit.
func (u DurationUnit) Minutes() int64 { return unitMinutes[u] }

// Valid reports whether u is one of the closed set of units.
func (u DurationUnit) Valid() bool { _, ok := unitMinutes[u]; return ok }

// Interval returns the payout interval as a time.Duration.
func (u DurationUnit) Interval() time.Duration {
	return time.Duration(u.Minutes()) * time.Minute
}

// ParseDurationUnit validates free-form input into a DurationUnit.
// Accepts singular and plural forms, case-insensitive.
func ParseDurationUnit(s string) (DurationUnit, error) {
	u := DurationUnit(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !u.Valid() {
		return "", fmt.Errorf("invalid duration unit %q (valid: minutes, hours, days, weeks, months): %w",
			s, ledger.ErrInvalidAmount)
	}
	return u, nil
}

// =============================================================================
// PLAN TEMPLATE
// =============================================================================

type Template struct {
	ID               PlanID
	Name             string
	Description      string
	MinDeposit       decimal.Decimal
	MaxDeposit       decimal.Decimal
	ReturnPercentage decimal.Decimal // paid per interval, e.g. 2.5 for 2.5%
	DurationValue    int             // number of payout intervals
	DurationUnit     DurationUnit
	HashRate         decimal.Decimal // simulated TH/s, display only
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Duration returns the total plan term: DurationValue payout intervals.
func (t Template) Duration() time.Duration {
	return time.Duration(t.DurationValue) * t.DurationUnit.Interval()
}

// Validate checks template invariants before the catalog accepts it.
func (t Template) Validate() error {
	var errs []string
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !t.MinDeposit.IsPositive() {
		errs = append(errs, "min deposit must be greater than 0")
	}
	if t.MaxDeposit.LessThan(t.MinDeposit) {
		errs = append(errs, "max deposit must be >= min deposit")
	}
	if !t.ReturnPercentage.IsPositive() {
		errs = append(errs, "return percentage must be greater than 0")
	}
	if t.DurationValue <= 0 {
		errs = append(errs, "duration value must be greater than 0")
	}
	if !t.DurationUnit.Valid() {
		errs = append(errs, fmt.Sprintf("invalid duration unit %q", t.DurationUnit))
	}
	if t.HashRate.IsNegative() {
		errs = append(errs, "hash rate cannot be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid plan: %s: %w", strings.Join(errs, "; "), ledger.ErrInvalidAmount)
	}
	return nil
}

// InBounds reports whether an investment amount is within the template's
// deposit bounds.
func (t Template) InBounds(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(t.MinDeposit) && amount.LessThanOrEqual(t.MaxDeposit)
}
