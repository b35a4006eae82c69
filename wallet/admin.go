package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
)

// AdjustmentKind selects the sign of an admin balance adjustment.
type AdjustmentKind string

const (
	AdjustCredit AdjustmentKind = "credit"
	AdjustDebit  AdjustmentKind = "debit"
)

// AdjustBalance applies a signed admin adjustment through the ledger
// path. The reason is mandatory and becomes the entry description; the
// admin username is recorded on the entry.
func (s *Service) AdjustBalance(ctx context.Context, userID ledger.UserID, amount decimal.Decimal, kind AdjustmentKind, reason, adminUsername string) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, fmt.Errorf("adjustment amount must be positive: %w", ledger.ErrInvalidAmount)
	}
	if strings.TrimSpace(reason) == "" {
		return ledger.Entry{}, ledger.ErrReasonRequired
	}

	signed := amount
	entryType := ledger.EntryAdminCredit
	if kind == AdjustDebit {
		signed = amount.Neg()
		entryType = ledger.EntryAdminDebit
	} else if kind != AdjustCredit {
		return ledger.Entry{}, fmt.Errorf("unknown adjustment kind %q: %w", kind, ledger.ErrInvalidAmount)
	}

	return s.Writer.Apply(ctx, ledger.Mutation{
		UserID:      userID,
		Amount:      signed,
		Type:        entryType,
		Description: reason,
		Reference:   fmt.Sprintf("ADJ-%s", s.Clock.Now().Format("20060102150405")),
		PerformedBy: adminUsername,
	})
}
