package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestWriter(t *testing.T) (*ledger.Writer, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.NewWriter(store), store
}

func createUser(t *testing.T, store *memory.Store, id string) ledger.UserID {
	t.Helper()
	uid := ledger.UserID(id)
	if err := store.CreateUser(context.Background(), ledger.User{
		ID:       uid,
		Username: id,
		Email:    id + "@example.com",
		IsActive: true,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return uid
}

func amount(s string) decimal.Decimal {
	return ledger.MustParseAmount(s)
}

func credit(t *testing.T, w *ledger.Writer, uid ledger.UserID, amt string) ledger.Entry {
	t.Helper()
	entry, err := w.Apply(context.Background(), ledger.Mutation{
		UserID:      uid,
		Amount:      amount(amt),
		Type:        ledger.EntryDeposit,
		Description: "test credit",
	})
	if err != nil {
		t.Fatalf("credit %s: %v", amt, err)
	}
	return entry
}

// =============================================================================
// BALANCE INVARIANT TESTS
// =============================================================================

func TestWriter_Apply_SnapshotsBracketTheMutation(t *testing.T) {
	// GIVEN: A wallet with 100
	// WHEN: Applying a -30 withdrawal
	// THEN: The entry records before=100, after=70 and the wallet agrees

	w, store := newTestWriter(t)
	uid := createUser(t, store, "alice")
	credit(t, w, uid, "100")

	entry, err := w.Apply(context.Background(), ledger.Mutation{
		UserID:      uid,
		Amount:      amount("-30"),
		Type:        ledger.EntryWithdrawal,
		Description: "test withdrawal",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !entry.BalanceBefore.Equal(amount("100")) {
		t.Errorf("expected balance before 100, got %s", entry.BalanceBefore)
	}
	if !entry.BalanceAfter.Equal(amount("70")) {
		t.Errorf("expected balance after 70, got %s", entry.BalanceAfter)
	}

	balance, err := store.Balance(context.Background(), uid)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(amount("70")) {
		t.Errorf("expected wallet balance 70, got %s", balance)
	}
}

func TestWriter_Apply_OverdraftRejected(t *testing.T) {
	// GIVEN: A wallet with 50
	// WHEN: Applying a -50.00000001 debit
	// THEN: ErrInsufficientFunds, balance unchanged, no entry appended

	w, store := newTestWriter(t)
	uid := createUser(t, store, "bob")
	credit(t, w, uid, "50")

	_, err := w.Apply(context.Background(), ledger.Mutation{
		UserID:      uid,
		Amount:      amount("-50.00000001"),
		Type:        ledger.EntryWithdrawal,
		Description: "overdraft attempt",
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	var ife *ledger.InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("expected structured InsufficientFundsError, got %T", err)
	}
	if !ife.Available.Equal(amount("50")) {
		t.Errorf("expected available 50 in error, got %s", ife.Available)
	}

	balance, _ := store.Balance(context.Background(), uid)
	if !balance.Equal(amount("50")) {
		t.Errorf("expected balance unchanged at 50, got %s", balance)
	}
	entries, _ := store.Entries(context.Background(), uid)
	if len(entries) != 1 {
		t.Errorf("expected only the initial credit entry, got %d entries", len(entries))
	}
}

func TestWriter_Apply_ExactDrainToZeroAllowed(t *testing.T) {
	// GIVEN: A wallet with 50
	// WHEN: Withdrawing exactly 50
	// THEN: Succeeds and balance is zero

	w, store := newTestWriter(t)
	uid := createUser(t, store, "carol")
	credit(t, w, uid, "50")

	entry, err := w.Apply(context.Background(), ledger.Mutation{
		UserID: uid,
		Amount: amount("-50"),
		Type:   ledger.EntryWithdrawal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.BalanceAfter.IsZero() {
		t.Errorf("expected zero balance after, got %s", entry.BalanceAfter)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestWriter_Apply_RejectsZeroAmount(t *testing.T) {
	w, store := newTestWriter(t)
	uid := createUser(t, store, "dave")

	_, err := w.Apply(context.Background(), ledger.Mutation{
		UserID: uid,
		Amount: decimal.Zero,
		Type:   ledger.EntryDeposit,
	})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWriter_Apply_RejectsUnknownEntryType(t *testing.T) {
	w, store := newTestWriter(t)
	uid := createUser(t, store, "erin")

	_, err := w.Apply(context.Background(), ledger.Mutation{
		UserID: uid,
		Amount: amount("10"),
		Type:   ledger.EntryType("mystery"),
	})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestWriter_Apply_AdminMutationRequiresReason(t *testing.T) {
	// GIVEN: An admin credit with no description
	// WHEN: Applying it
	// THEN: ErrReasonRequired

	w, store := newTestWriter(t)
	uid := createUser(t, store, "frank")

	_, err := w.Apply(context.Background(), ledger.Mutation{
		UserID: uid,
		Amount: amount("25"),
		Type:   ledger.EntryAdminCredit,
	})
	if !errors.Is(err, ledger.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestWriter_Apply_UnknownUser(t *testing.T) {
	w, _ := newTestWriter(t)

	_, err := w.Apply(context.Background(), ledger.Mutation{
		UserID: "ghost",
		Amount: amount("10"),
		Type:   ledger.EntryDeposit,
	})
	if !ledger.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

// =============================================================================
// IDEMPOTENCY TESTS
// =============================================================================

func TestWriter_Apply_DuplicateIdempotencyKeyAppliesNothing(t *testing.T) {
	// GIVEN: A credit already applied under key "once"
	// WHEN: Replaying the same mutation
	// THEN: ErrDuplicateIdempotencyKey and the balance moved exactly once

	w, store := newTestWriter(t)
	uid := createUser(t, store, "grace")

	m := ledger.Mutation{
		UserID:         uid,
		Amount:         amount("40"),
		Type:           ledger.EntryDeposit,
		IdempotencyKey: "once",
	}
	if _, err := w.Apply(context.Background(), m); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	_, err := w.Apply(context.Background(), m)
	if !errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}

	balance, _ := store.Balance(context.Background(), uid)
	if !balance.Equal(amount("40")) {
		t.Errorf("expected balance 40 after replay, got %s", balance)
	}
}

// =============================================================================
// CONCURRENCY / RECONCILIATION TESTS
// =============================================================================

func TestWriter_Apply_ConcurrentMutationsReconcile(t *testing.T) {
	// GIVEN: One wallet with 1000 and two users mutating concurrently
	// WHEN: 50 goroutines apply mixed credits and debits
	// THEN: Balance equals the entry sum exactly and never went negative

	w, store := newTestWriter(t)
	uid := createUser(t, store, "hot-wallet")
	other := createUser(t, store, "bystander")
	credit(t, w, uid, "1000")
	credit(t, w, other, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amt := amount("7")
			if i%2 == 1 {
				amt = amount("-5")
			}
			target := uid
			if i%5 == 0 {
				target = other
			}
			// Overdrafts are a legal outcome here; the invariant under
			// test is that whatever lands reconciles.
			w.Apply(context.Background(), ledger.Mutation{
				UserID:      target,
				Amount:      amt,
				Type:        ledger.EntryAdminCredit,
				Description: fmt.Sprintf("concurrent mutation %d", i),
			})
		}(i)
	}
	wg.Wait()

	for _, id := range []ledger.UserID{uid, other} {
		balance, err := store.Balance(context.Background(), id)
		if err != nil {
			t.Fatalf("balance %s: %v", id, err)
		}
		sum, err := store.SumEntries(context.Background(), id)
		if err != nil {
			t.Fatalf("sum %s: %v", id, err)
		}
		if !balance.Equal(sum) {
			t.Errorf("user %s: balance %s != entry sum %s", id, balance, sum)
		}
		if balance.IsNegative() {
			t.Errorf("user %s: balance went negative: %s", id, balance)
		}
	}
}

func TestStore_Entries_NewestFirst(t *testing.T) {
	w, store := newTestWriter(t)
	uid := createUser(t, store, "ivy")

	credit(t, w, uid, "1")
	credit(t, w, uid, "2")
	credit(t, w, uid, "3")

	entries, err := store.Entries(context.Background(), uid)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if !entries[0].Amount.Equal(amount("3")) {
		t.Errorf("expected newest entry first, got amount %s", entries[0].Amount)
	}
}
