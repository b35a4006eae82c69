package wallet_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/store/memory"
	"github.com/hashvault/mining-engine/wallet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	store  *memory.Store
	writer *ledger.Writer
	svc    *wallet.Service
	clock  *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	writer := ledger.NewWriter(store)
	writer.Clock = clock
	svc := wallet.NewService(store, store, writer)
	svc.Clock = clock
	return &fixture{store: store, writer: writer, svc: svc, clock: clock}
}

func (f *fixture) user(t *testing.T, id string, balance string) ledger.UserID {
	t.Helper()
	uid := ledger.UserID(id)
	if err := f.store.CreateUser(context.Background(), ledger.User{
		ID: uid, Username: id, IsActive: true,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if balance != "" && balance != "0" {
		if _, err := f.writer.Apply(context.Background(), ledger.Mutation{
			UserID:      uid,
			Amount:      ledger.MustParseAmount(balance),
			Type:        ledger.EntryDeposit,
			Description: "test funding",
		}); err != nil {
			t.Fatalf("fund user: %v", err)
		}
	}
	return uid
}

func (f *fixture) balance(t *testing.T, uid ledger.UserID) string {
	t.Helper()
	b, err := f.store.Balance(context.Background(), uid)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b.String()
}

// =============================================================================
// DEPOSIT LIFECYCLE
// =============================================================================

func TestCreateDeposit_PendingWithGeneratedAddress(t *testing.T) {
	// GIVEN: A user
	// WHEN: Creating a deposit
	// THEN: Pending, an 0x address is generated, and no balance moves

	f := newFixture(t)
	uid := f.user(t, "alice", "0")

	d, err := f.svc.CreateDeposit(context.Background(), uid, ledger.MustParseAmount("250"))
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if d.Status != wallet.DepositPending {
		t.Errorf("expected pending, got %s", d.Status)
	}
	if !strings.HasPrefix(d.CryptoAddress, "0x") || len(d.CryptoAddress) != 42 {
		t.Errorf("expected 0x-prefixed 20-byte hex address, got %q", d.CryptoAddress)
	}
	if got := f.balance(t, uid); got != "0" {
		t.Errorf("pending deposit must not credit, got %s", got)
	}
}

func TestCreateDeposit_RejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "bob", "0")

	for _, amt := range []string{"0", "-5"} {
		_, err := f.svc.CreateDeposit(context.Background(), uid, ledger.MustParseAmount(amt))
		if !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amt, err)
		}
	}
}

func TestConfirmDeposit_CreditsExactlyOnce(t *testing.T) {
	// GIVEN: A pending 250 deposit
	// WHEN: Confirming it, then confirming again
	// THEN: One credit; the second confirmation fails with ErrInvalidState

	f := newFixture(t)
	uid := f.user(t, "carol", "0")
	d, err := f.svc.CreateDeposit(context.Background(), uid, ledger.MustParseAmount("250"))
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}

	confirmed, err := f.svc.ConfirmDeposit(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != wallet.DepositConfirmed || confirmed.ConfirmedAt == nil {
		t.Errorf("expected confirmed with timestamp, got %+v", confirmed)
	}
	if got := f.balance(t, uid); got != "250" {
		t.Errorf("expected 250 after confirmation, got %s", got)
	}

	_, err = f.svc.ConfirmDeposit(context.Background(), d.ID)
	if !errors.Is(err, ledger.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on re-confirmation, got %v", err)
	}
	if got := f.balance(t, uid); got != "250" {
		t.Errorf("re-confirmation must not credit again, got %s", got)
	}
}

func TestConfirmDeposit_RetryAfterLostStatusUpdateIsCreditSafe(t *testing.T) {
	// GIVEN: The credit landed but the status update was lost (deposit
	//        still pending, ledger already carries the deposit key)
	// WHEN: Confirmation is retried
	// THEN: The wallet is not credited twice and the status is repaired

	f := newFixture(t)
	uid := f.user(t, "dave", "0")
	d, err := f.svc.CreateDeposit(context.Background(), uid, ledger.MustParseAmount("100"))
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}

	if _, err := f.svc.ConfirmDeposit(context.Background(), d.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// Simulate the lost update: force the record back to pending.
	damaged, err := f.store.Deposit(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("load deposit: %v", err)
	}
	damaged.Status = wallet.DepositPending
	damaged.ConfirmedAt = nil
	if err := f.store.UpdateDeposit(context.Background(), damaged); err != nil {
		t.Fatalf("damage deposit: %v", err)
	}

	repaired, err := f.svc.ConfirmDeposit(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	if repaired.Status != wallet.DepositConfirmed {
		t.Errorf("expected repaired status confirmed, got %s", repaired.Status)
	}
	if got := f.balance(t, uid); got != "100" {
		t.Errorf("retry must not double-credit, got %s", got)
	}
}

func TestRejectDeposit_RecordsReasonWithoutCredit(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "erin", "0")
	d, err := f.svc.CreateDeposit(context.Background(), uid, ledger.MustParseAmount("100"))
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}

	rejected, err := f.svc.RejectDeposit(context.Background(), d.ID, "no transaction found on chain")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != wallet.DepositFailed {
		t.Errorf("expected failed status, got %s", rejected.Status)
	}
	if rejected.FailureReason != "no transaction found on chain" {
		t.Errorf("expected failure reason recorded, got %q", rejected.FailureReason)
	}
	if got := f.balance(t, uid); got != "0" {
		t.Errorf("rejection must not credit, got %s", got)
	}

	// A failed deposit cannot be confirmed afterwards.
	if _, err := f.svc.ConfirmDeposit(context.Background(), d.ID); !errors.Is(err, ledger.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState confirming a failed deposit, got %v", err)
	}
}

// =============================================================================
// WITHDRAWAL LIFECYCLE
// =============================================================================

func TestRequestWithdrawal_HoldsFundsImmediately(t *testing.T) {
	// GIVEN: A wallet with 500
	// WHEN: Requesting a 200 withdrawal
	// THEN: The wallet drops to 300 while the request is pending

	f := newFixture(t)
	uid := f.user(t, "frank", "500")

	w, err := f.svc.RequestWithdrawal(context.Background(), uid,
		ledger.MustParseAmount("200"), "0xabcdef1234567890abcdef1234567890abcdef12")
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	if w.Status != wallet.WithdrawalPending {
		t.Errorf("expected pending, got %s", w.Status)
	}
	if got := f.balance(t, uid); got != "300" {
		t.Errorf("expected hold to debit immediately, got %s", got)
	}
}

func TestRequestWithdrawal_BelowMinimumRejected(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "grace", "500")

	_, err := f.svc.RequestWithdrawal(context.Background(), uid,
		ledger.MustParseAmount("9.99"), "0xabc")
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount below minimum, got %v", err)
	}
	if got := f.balance(t, uid); got != "500" {
		t.Errorf("rejected request must not debit, got %s", got)
	}
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "henry", "50")

	_, err := f.svc.RequestWithdrawal(context.Background(), uid,
		ledger.MustParseAmount("100"), "0xabc")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(t, uid); got != "50" {
		t.Errorf("failed request must not debit, got %s", got)
	}
}

// brokenWithdrawalStore fails the transactional request write.
type brokenWithdrawalStore struct {
	*memory.Store
}

func (s *brokenWithdrawalStore) CreateWithdrawalWithHold(context.Context, ledger.Entry, wallet.Withdrawal) (ledger.Entry, error) {
	return ledger.Entry{}, errors.New("disk full")
}

func TestRequestWithdrawal_FailedStoreWriteLeavesNoHold(t *testing.T) {
	// GIVEN: A store whose request write fails outright
	// WHEN: Requesting a withdrawal
	// THEN: No funds are held and no request record exists; the hold can
	//       only land together with the record an admin would act on

	f := newFixture(t)
	uid := f.user(t, "noah", "500")

	broken := wallet.NewService(f.store, &brokenWithdrawalStore{Store: f.store}, f.writer)
	broken.Clock = f.clock

	if _, err := broken.RequestWithdrawal(context.Background(), uid,
		ledger.MustParseAmount("100"), "0xabc"); err == nil {
		t.Fatal("expected withdrawal request to fail")
	}

	if got := f.balance(t, uid); got != "500" {
		t.Errorf("failed request must not hold funds, got %s", got)
	}
	ws, err := f.svc.UserWithdrawals(context.Background(), uid)
	if err != nil {
		t.Fatalf("list withdrawals: %v", err)
	}
	if len(ws) != 0 {
		t.Errorf("expected no withdrawal records, got %d", len(ws))
	}
}

func TestApproveWithdrawal_NoFurtherBalanceChange(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "ivy", "500")
	w, err := f.svc.RequestWithdrawal(context.Background(), uid,
		ledger.MustParseAmount("200"), "0xabc")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	approved, err := f.svc.ApproveWithdrawal(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != wallet.WithdrawalCompleted || approved.ProcessedAt == nil {
		t.Errorf("expected completed with timestamp, got %+v", approved)
	}
	if got := f.balance(t, uid); got != "300" {
		t.Errorf("approval must not move the balance again, got %s", got)
	}

	// Terminal: cannot approve or reject again.
	if _, err := f.svc.ApproveWithdrawal(context.Background(), w.ID); !errors.Is(err, ledger.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double approve, got %v", err)
	}
	if _, err := f.svc.RejectWithdrawal(context.Background(), w.ID, "x"); !errors.Is(err, ledger.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState rejecting a completed withdrawal, got %v", err)
	}
}

func TestRejectWithdrawal_RefundsHeldAmount(t *testing.T) {
	// GIVEN: A pending 200 withdrawal holding funds
	// WHEN: An admin rejects it
	// THEN: The hold is refunded and the reason recorded

	f := newFixture(t)
	uid := f.user(t, "jack", "500")
	w, err := f.svc.RequestWithdrawal(context.Background(), uid,
		ledger.MustParseAmount("200"), "0xabc")
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	rejected, err := f.svc.RejectWithdrawal(context.Background(), w.ID, "address failed verification")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != wallet.WithdrawalRejected {
		t.Errorf("expected rejected status, got %s", rejected.Status)
	}
	if rejected.RejectReason != "address failed verification" {
		t.Errorf("expected reason recorded, got %q", rejected.RejectReason)
	}
	if got := f.balance(t, uid); got != "500" {
		t.Errorf("expected full refund, got %s", got)
	}
}

// =============================================================================
// ADMIN ADJUSTMENTS
// =============================================================================

func TestAdjustBalance_CreditAndDebit(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "kate", "100")

	entry, err := f.svc.AdjustBalance(context.Background(), uid,
		ledger.MustParseAmount("50"), wallet.AdjustCredit, "promo bonus", "admin-jane")
	if err != nil {
		t.Fatalf("credit adjustment: %v", err)
	}
	if entry.Type != ledger.EntryAdminCredit {
		t.Errorf("expected admin_credit entry, got %s", entry.Type)
	}
	if entry.PerformedBy != "admin-jane" {
		t.Errorf("expected admin recorded, got %q", entry.PerformedBy)
	}
	if got := f.balance(t, uid); got != "150" {
		t.Errorf("expected 150 after credit, got %s", got)
	}

	entry, err = f.svc.AdjustBalance(context.Background(), uid,
		ledger.MustParseAmount("30"), wallet.AdjustDebit, "chargeback", "admin-jane")
	if err != nil {
		t.Fatalf("debit adjustment: %v", err)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("expected signed -30 amount, got %s", entry.Amount)
	}
	if got := f.balance(t, uid); got != "120" {
		t.Errorf("expected 120 after debit, got %s", got)
	}
}

func TestAdjustBalance_ReasonIsMandatory(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "leo", "100")

	_, err := f.svc.AdjustBalance(context.Background(), uid,
		ledger.MustParseAmount("50"), wallet.AdjustCredit, "   ", "admin-jane")
	if !errors.Is(err, ledger.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestAdjustBalance_RejectsUnknownKindAndNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "mia", "100")

	_, err := f.svc.AdjustBalance(context.Background(), uid,
		ledger.MustParseAmount("50"), wallet.AdjustmentKind("transfer"), "reason", "admin")
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for unknown kind, got %v", err)
	}

	_, err = f.svc.AdjustBalance(context.Background(), uid,
		ledger.MustParseAmount("-50"), wallet.AdjustCredit, "reason", "admin")
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative amount, got %v", err)
	}
}

func TestAdjustBalance_DebitCannotOverdraw(t *testing.T) {
	f := newFixture(t)
	uid := f.user(t, "nina", "20")

	_, err := f.svc.AdjustBalance(context.Background(), uid,
		ledger.MustParseAmount("50"), wallet.AdjustDebit, "correction", "admin")
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(t, uid); got != "20" {
		t.Errorf("failed debit must not move the balance, got %s", got)
	}
}
