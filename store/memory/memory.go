/*
Package memory provides in-memory implementations of every store
interface: ledger.Store, plans.Registry, mining.SubscriptionStore,
wallet.DepositStore, and wallet.WithdrawalStore. Used by tests and dev
runs; the SQLite store is the durable counterpart.

CONCURRENCY:
  Wallet mutations are serialized per user: Apply holds that user's
  mutex for the whole read-check-write-append sequence, so concurrent
  accrual credits and withdrawals on one wallet can never race into a
  lost update, while different users' mutations only contend on the
  short map-access critical sections.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/mining"
	"github.com/hashvault/mining-engine/plans"
	"github.com/hashvault/mining-engine/wallet"
)

type Store struct {
	mu          sync.RWMutex
	users       map[ledger.UserID]ledger.User
	entries     map[ledger.UserID][]ledger.Entry
	idempotency map[string]ledger.Entry
	userLocks   map[ledger.UserID]*sync.Mutex

	plans     map[plans.PlanID]plans.Template
	planOrder []plans.PlanID

	subs     map[ledger.SubscriptionID]mining.Subscription
	subOrder []ledger.SubscriptionID

	deposits      map[string]wallet.Deposit
	depositOrder  []string
	withdrawals   map[string]wallet.Withdrawal
	withdrawOrder []string
}

func New() *Store {
	return &Store{
		users:       make(map[ledger.UserID]ledger.User),
		entries:     make(map[ledger.UserID][]ledger.Entry),
		idempotency: make(map[string]ledger.Entry),
		userLocks:   make(map[ledger.UserID]*sync.Mutex),
		plans:       make(map[plans.PlanID]plans.Template),
		subs:        make(map[ledger.SubscriptionID]mining.Subscription),
		deposits:    make(map[string]wallet.Deposit),
		withdrawals: make(map[string]wallet.Withdrawal),
	}
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Store) CreateUser(_ context.Context, u ledger.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; ok {
		return ledger.ErrInvalidState
	}
	u.Balance = decimal.Zero
	m.users[u.ID] = u
	return nil
}

func (m *Store) User(_ context.Context, id ledger.UserID) (ledger.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return ledger.User{}, ledger.ErrNotFound
	}
	return u, nil
}

// userLock returns the mutex serializing one user's wallet mutations.
func (m *Store) userLock(id ledger.UserID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lk, ok := m.userLocks[id]
	if !ok {
		lk = &sync.Mutex{}
		m.userLocks[id] = lk
	}
	return lk
}

func (m *Store) Apply(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	lk := m.userLock(e.UserID)
	lk.Lock()
	defer lk.Unlock()
	return m.applyLocked(e)
}

// applyLocked performs the balance check, balance write, and entry
// append. The caller must hold e.UserID's user lock.
func (m *Store) applyLocked(e ledger.Entry) (ledger.Entry, error) {
	m.mu.RLock()
	u, ok := m.users[e.UserID]
	var dup bool
	if e.IdempotencyKey != "" {
		_, dup = m.idempotency[e.IdempotencyKey]
	}
	m.mu.RUnlock()

	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	if dup {
		return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
	}

	newBalance := u.Balance.Add(e.Amount)
	if newBalance.IsNegative() {
		return ledger.Entry{}, &ledger.InsufficientFundsError{
			UserID:    e.UserID,
			Available: u.Balance,
			Requested: e.Amount.Neg(),
		}
	}

	e.BalanceBefore = u.Balance
	e.BalanceAfter = newBalance

	m.mu.Lock()
	u.Balance = newBalance
	m.users[e.UserID] = u
	m.entries[e.UserID] = append(m.entries[e.UserID], e)
	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = e
	}
	m.mu.Unlock()

	return e, nil
}

func (m *Store) EntryByIdempotencyKey(_ context.Context, key string) (ledger.Entry, error) {
	if key == "" {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.idempotency[key]
	if !ok {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	return e, nil
}

func (m *Store) Balance(_ context.Context, id ledger.UserID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return decimal.Zero, ledger.ErrNotFound
	}
	return u.Balance, nil
}

func (m *Store) Entries(_ context.Context, id ledger.UserID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.entries[id]
	result := make([]ledger.Entry, len(stored))
	for i, e := range stored {
		result[len(stored)-1-i] = e // newest first
	}
	return result, nil
}

func (m *Store) SumEntries(_ context.Context, id ledger.UserID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range m.entries[id] {
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

// =============================================================================
// PLAN REGISTRY
// =============================================================================

func (m *Store) Plan(_ context.Context, id plans.PlanID) (plans.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.plans[id]
	if !ok {
		return plans.Template{}, ledger.ErrNotFound
	}
	return t, nil
}

func (m *Store) List(_ context.Context, includeInactive bool) ([]plans.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []plans.Template
	for _, id := range m.planOrder {
		t := m.plans[id]
		if !includeInactive && !t.IsActive {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (m *Store) Save(_ context.Context, t plans.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[t.ID]; !ok {
		m.planOrder = append(m.planOrder, t.ID)
	}
	m.plans[t.ID] = t
	return nil
}

// =============================================================================
// SUBSCRIPTION STORE
// =============================================================================

func (m *Store) CreateSubscription(_ context.Context, s mining.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; ok {
		return ledger.ErrInvalidState
	}
	m.subs[s.ID] = s
	m.subOrder = append(m.subOrder, s.ID)
	return nil
}

func (m *Store) CreateSubscriptionWithDebit(_ context.Context, debit ledger.Entry, s mining.Subscription) (ledger.Entry, error) {
	lk := m.userLock(debit.UserID)
	lk.Lock()
	defer lk.Unlock()

	m.mu.RLock()
	_, exists := m.subs[s.ID]
	m.mu.RUnlock()
	if exists {
		return ledger.Entry{}, ledger.ErrInvalidState
	}

	applied, err := m.applyLocked(debit)
	if err != nil {
		return ledger.Entry{}, err
	}

	m.mu.Lock()
	m.subs[s.ID] = s
	m.subOrder = append(m.subOrder, s.ID)
	m.mu.Unlock()
	return applied, nil
}

func (m *Store) Subscription(_ context.Context, id ledger.SubscriptionID) (mining.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return mining.Subscription{}, ledger.ErrNotFound
	}
	return s, nil
}

func (m *Store) SubscriptionsByUser(_ context.Context, userID ledger.UserID) ([]mining.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []mining.Subscription
	for i := len(m.subOrder) - 1; i >= 0; i-- {
		if s := m.subs[m.subOrder[i]]; s.UserID == userID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *Store) ActiveSubscriptions(_ context.Context) ([]mining.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []mining.Subscription
	for _, id := range m.subOrder {
		if s := m.subs[id]; s.Status == mining.StatusActive {
			result = append(result, s)
		}
	}
	// Oldest start date first, so long-running positions settle first.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})
	return result, nil
}

func (m *Store) UpdateSubscription(_ context.Context, s mining.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[s.ID]; !ok {
		return ledger.ErrNotFound
	}
	m.subs[s.ID] = s
	return nil
}

// =============================================================================
// DEPOSIT / WITHDRAWAL STORES
// =============================================================================

func (m *Store) CreateDeposit(_ context.Context, d wallet.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deposits[d.ID]; ok {
		return ledger.ErrInvalidState
	}
	m.deposits[d.ID] = d
	m.depositOrder = append(m.depositOrder, d.ID)
	return nil
}

func (m *Store) Deposit(_ context.Context, id string) (wallet.Deposit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deposits[id]
	if !ok {
		return wallet.Deposit{}, ledger.ErrNotFound
	}
	return d, nil
}

func (m *Store) DepositsByUser(_ context.Context, userID ledger.UserID) ([]wallet.Deposit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []wallet.Deposit
	for i := len(m.depositOrder) - 1; i >= 0; i-- {
		if d := m.deposits[m.depositOrder[i]]; d.UserID == userID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *Store) UpdateDeposit(_ context.Context, d wallet.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deposits[d.ID]; !ok {
		return ledger.ErrNotFound
	}
	m.deposits[d.ID] = d
	return nil
}

func (m *Store) CreateWithdrawal(_ context.Context, w wallet.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.withdrawals[w.ID]; ok {
		return ledger.ErrInvalidState
	}
	m.withdrawals[w.ID] = w
	m.withdrawOrder = append(m.withdrawOrder, w.ID)
	return nil
}

func (m *Store) CreateWithdrawalWithHold(_ context.Context, hold ledger.Entry, w wallet.Withdrawal) (ledger.Entry, error) {
	lk := m.userLock(hold.UserID)
	lk.Lock()
	defer lk.Unlock()

	m.mu.RLock()
	_, exists := m.withdrawals[w.ID]
	m.mu.RUnlock()
	if exists {
		return ledger.Entry{}, ledger.ErrInvalidState
	}

	applied, err := m.applyLocked(hold)
	if err != nil {
		return ledger.Entry{}, err
	}

	m.mu.Lock()
	m.withdrawals[w.ID] = w
	m.withdrawOrder = append(m.withdrawOrder, w.ID)
	m.mu.Unlock()
	return applied, nil
}

func (m *Store) Withdrawal(_ context.Context, id string) (wallet.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return wallet.Withdrawal{}, ledger.ErrNotFound
	}
	return w, nil
}

func (m *Store) WithdrawalsByUser(_ context.Context, userID ledger.UserID) ([]wallet.Withdrawal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []wallet.Withdrawal
	for i := len(m.withdrawOrder) - 1; i >= 0; i-- {
		if w := m.withdrawals[m.withdrawOrder[i]]; w.UserID == userID {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *Store) UpdateWithdrawal(_ context.Context, w wallet.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.withdrawals[w.ID]; !ok {
		return ledger.ErrNotFound
	}
	m.withdrawals[w.ID] = w
	return nil
}

// Compile-time interface checks.
var (
	_ ledger.Store             = (*Store)(nil)
	_ plans.Registry           = (*Store)(nil)
	_ mining.SubscriptionStore = (*Store)(nil)
	_ wallet.DepositStore      = (*Store)(nil)
	_ wallet.WithdrawalStore   = (*Store)(nil)
)
