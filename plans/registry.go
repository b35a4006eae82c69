package plans

import "context"

// Registry is the read-mostly catalog of plan templates.
//
// The accrual engine reads the rate and unit live from the registry on
// every tick, so an admin rate change applies to future payouts only:
// already-computed payouts are ledger entries and are never recomputed.
type Registry interface {
	// Plan returns a template, or ledger.ErrNotFound.
	Plan(ctx context.Context, id PlanID) (Template, error)

	// List returns templates. Non-admin listings pass includeInactive=false
	// and see only active plans.
	List(ctx context.Context, includeInactive bool) ([]Template, error)

	// Save inserts or updates a template. Callers validate first.
	Save(ctx context.Context, t Template) error
}
