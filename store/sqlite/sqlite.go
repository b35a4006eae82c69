/*
Package sqlite provides the durable implementation of every store
interface using SQLite.

INTERFACES IMPLEMENTED:
  ledger.Store:             users, balances, append-only ledger entries
  plans.Registry:           plan templates
  mining.SubscriptionStore: subscriptions
  wallet.DepositStore:      deposits
  wallet.WithdrawalStore:   withdrawals

ATOMICITY:
  Apply runs the balance check, balance update, and entry insert inside a
  single SQL transaction: either both the new balance and its ledger
  entry are durable, or neither is. The entries table has no UPDATE or
  DELETE path.

CONCURRENCY:
  Per-user mutexes serialize one wallet's mutations; different users only
  share SQLite's single-writer lock for the short write transaction.
  WAL mode keeps readers unblocked.

PRECISION:
  Amounts are stored as TEXT and parsed with shopspring/decimal, so the
  fixed 8-digit scale survives round trips exactly.

USAGE:
  store, err := sqlite.New("./data/mining.db")  // or ":memory:"
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hashvault/mining-engine/ledger"
	"github.com/hashvault/mining-engine/mining"
	"github.com/hashvault/mining-engine/plans"
	"github.com/hashvault/mining-engine/wallet"
)

type Store struct {
	db *sql.DB

	mu        sync.Mutex
	userLocks map[ledger.UserID]*sync.Mutex
}

// New opens (or creates) the database and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The in-memory database vanishes if its only connection closes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, userLocks: make(map[ledger.UserID]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	-- Append-only wallet ledger. No UPDATE, no DELETE.
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		description TEXT,
		reference TEXT,
		performed_by TEXT,
		subscription_id TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_user_created
		ON entries(user_id, created_at);

	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		min_deposit TEXT NOT NULL,
		max_deposit TEXT NOT NULL,
		return_percentage TEXT NOT NULL,
		duration_value INTEGER NOT NULL,
		duration_unit TEXT NOT NULL,
		hash_rate TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		plan_id TEXT NOT NULL REFERENCES plans(id),
		invested_amount TEXT NOT NULL,
		total_earned TEXT NOT NULL DEFAULT '0',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		last_accrual TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_status
		ON subscriptions(status);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_user
		ON subscriptions(user_id);

	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount TEXT NOT NULL,
		crypto_address TEXT NOT NULL,
		tx_hash TEXT,
		status TEXT NOT NULL,
		failure_reason TEXT,
		created_at TEXT NOT NULL,
		confirmed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_deposits_user ON deposits(user_id);

	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		status TEXT NOT NULL,
		reject_reason TEXT,
		created_at TEXT NOT NULL,
		processed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TIME / DECIMAL HELPERS
// =============================================================================

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u ledger.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, balance, is_active, created_at)
		 VALUES (?, ?, ?, '0', ?, ?)`,
		string(u.ID), u.Username, u.Email, boolToInt(u.IsActive), formatTime(created))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("user %s already exists: %w", u.ID, ledger.ErrInvalidState)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) User(ctx context.Context, id ledger.UserID) (ledger.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, balance, is_active, created_at FROM users WHERE id = ?`,
		string(id))

	var u ledger.User
	var uid, balance, createdAt string
	var isActive int
	if err := row.Scan(&uid, &u.Username, &u.Email, &balance, &isActive, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.User{}, ledger.ErrNotFound
		}
		return ledger.User{}, fmt.Errorf("load user: %w", err)
	}
	u.ID = ledger.UserID(uid)
	u.Balance = parseDecimal(balance)
	u.IsActive = isActive != 0
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

func (s *Store) userLock(id ledger.UserID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lk, ok := s.userLocks[id]
	if !ok {
		lk = &sync.Mutex{}
		s.userLocks[id] = lk
	}
	return lk
}

// Apply performs the balance check, balance write, and entry append in
// one SQL transaction, serialized per user.
func (s *Store) Apply(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	lk := s.userLock(e.UserID)
	lk.Lock()
	defer lk.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin mutation: %w", err)
	}
	defer tx.Rollback()

	e, err = s.applyTx(ctx, tx, e)
	if err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit mutation: %w", err)
	}
	return e, nil
}

// applyTx runs the balance check, balance write, and entry append inside
// the caller's transaction, so another row can commit with them.
func (s *Store) applyTx(ctx context.Context, tx *sql.Tx, e ledger.Entry) (ledger.Entry, error) {
	if e.IdempotencyKey != "" {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM entries WHERE idempotency_key = ?`, e.IdempotencyKey).Scan(&exists)
		if err != nil {
			return ledger.Entry{}, fmt.Errorf("check idempotency: %w", err)
		}
		if exists > 0 {
			return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
		}
	}

	var balanceStr string
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = ?`, string(e.UserID)).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("read balance: %w", err)
	}

	balance := parseDecimal(balanceStr)
	newBalance := balance.Add(e.Amount)
	if newBalance.IsNegative() {
		return ledger.Entry{}, &ledger.InsufficientFundsError{
			UserID:    e.UserID,
			Available: balance,
			Requested: e.Amount.Neg(),
		}
	}

	e.BalanceBefore = balance
	e.BalanceAfter = newBalance

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = ? WHERE id = ?`,
		newBalance.String(), string(e.UserID)); err != nil {
		return ledger.Entry{}, fmt.Errorf("write balance: %w", err)
	}

	var idemKey any
	if e.IdempotencyKey != "" {
		idemKey = e.IdempotencyKey
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries (id, user_id, entry_type, amount, balance_before, balance_after,
		                      description, reference, performed_by, subscription_id,
		                      idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), string(e.UserID), string(e.Type), e.Amount.String(),
		e.BalanceBefore.String(), e.BalanceAfter.String(),
		e.Description, e.Reference, e.PerformedBy, string(e.SubscriptionID),
		idemKey, formatTime(e.CreatedAt)); err != nil {
		return ledger.Entry{}, fmt.Errorf("append entry: %w", err)
	}

	return e, nil
}

func (s *Store) Balance(ctx context.Context, id ledger.UserID) (decimal.Decimal, error) {
	var balance string
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM users WHERE id = ?`, string(id)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ledger.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	return parseDecimal(balance), nil
}

const entrySelect = `SELECT id, user_id, entry_type, amount, balance_before, balance_after,
	description, reference, performed_by, subscription_id,
	COALESCE(idempotency_key, ''), created_at FROM entries`

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var e ledger.Entry
	var eid, uid, etype, amount, before, after, subID, createdAt string
	if err := row.Scan(&eid, &uid, &etype, &amount, &before, &after,
		&e.Description, &e.Reference, &e.PerformedBy, &subID,
		&e.IdempotencyKey, &createdAt); err != nil {
		return ledger.Entry{}, err
	}
	e.ID = ledger.EntryID(eid)
	e.UserID = ledger.UserID(uid)
	e.Type = ledger.EntryType(etype)
	e.Amount = parseDecimal(amount)
	e.BalanceBefore = parseDecimal(before)
	e.BalanceAfter = parseDecimal(after)
	e.SubscriptionID = ledger.SubscriptionID(subID)
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func (s *Store) Entries(ctx context.Context, id ledger.UserID) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		entrySelect+` WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, string(id))
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var result []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) EntryByIdempotencyKey(ctx context.Context, key string) (ledger.Entry, error) {
	if key == "" {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, entrySelect+` WHERE idempotency_key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("load entry by key: %w", err)
	}
	return e, nil
}

func (s *Store) SumEntries(ctx context.Context, id ledger.UserID) (decimal.Decimal, error) {
	// Sum in decimal, not SQL: SQLite would coerce TEXT amounts to float.
	rows, err := s.db.QueryContext(ctx,
		`SELECT amount FROM entries WHERE user_id = ?`, string(id))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum entries: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("scan amount: %w", err)
		}
		sum = sum.Add(parseDecimal(amount))
	}
	return sum, rows.Err()
}

// =============================================================================
// PLAN REGISTRY
// =============================================================================

func (s *Store) Plan(ctx context.Context, id plans.PlanID) (plans.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), min_deposit, max_deposit,
		        return_percentage, duration_value, duration_unit, hash_rate,
		        is_active, created_at, COALESCE(updated_at, '')
		 FROM plans WHERE id = ?`, string(id))
	t, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return plans.Template{}, ledger.ErrNotFound
	}
	return t, err
}

func (s *Store) List(ctx context.Context, includeInactive bool) ([]plans.Template, error) {
	query := `SELECT id, name, COALESCE(description, ''), min_deposit, max_deposit,
	                 return_percentage, duration_value, duration_unit, hash_rate,
	                 is_active, created_at, COALESCE(updated_at, '')
	          FROM plans`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var result []plans.Template
	for rows.Next() {
		t, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (s *Store) Save(ctx context.Context, t plans.Template) error {
	now := time.Now().UTC()
	created := t.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plans (id, name, description, min_deposit, max_deposit,
		                    return_percentage, duration_value, duration_unit,
		                    hash_rate, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT(id) DO UPDATE SET
		    name = excluded.name,
		    description = excluded.description,
		    min_deposit = excluded.min_deposit,
		    max_deposit = excluded.max_deposit,
		    return_percentage = excluded.return_percentage,
		    duration_value = excluded.duration_value,
		    duration_unit = excluded.duration_unit,
		    hash_rate = excluded.hash_rate,
		    is_active = excluded.is_active,
		    updated_at = ?`,
		string(t.ID), t.Name, t.Description, t.MinDeposit.String(), t.MaxDeposit.String(),
		t.ReturnPercentage.String(), t.DurationValue, string(t.DurationUnit),
		t.HashRate.String(), boolToInt(t.IsActive), formatTime(created), formatTime(now))
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

// execer is satisfied by *sql.DB and *sql.Tx, so inserts can run
// standalone or inside a wallet mutation's transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanPlan(row rowScanner) (plans.Template, error) {
	var t plans.Template
	var id, minDep, maxDep, pct, unit, hashRate, createdAt, updatedAt string
	var isActive int
	if err := row.Scan(&id, &t.Name, &t.Description, &minDep, &maxDep,
		&pct, &t.DurationValue, &unit, &hashRate, &isActive, &createdAt, &updatedAt); err != nil {
		return plans.Template{}, err
	}
	t.ID = plans.PlanID(id)
	t.MinDeposit = parseDecimal(minDep)
	t.MaxDeposit = parseDecimal(maxDep)
	t.ReturnPercentage = parseDecimal(pct)
	t.DurationUnit = plans.DurationUnit(unit)
	t.HashRate = parseDecimal(hashRate)
	t.IsActive = isActive != 0
	t.CreatedAt = parseTime(createdAt)
	if updatedAt != "" {
		t.UpdatedAt = parseTime(updatedAt)
	}
	return t, nil
}

// =============================================================================
// SUBSCRIPTION STORE
// =============================================================================

func insertSubscription(ctx context.Context, db execer, sub mining.Subscription) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, invested_amount, total_earned,
		                            start_date, end_date, last_accrual, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sub.ID), string(sub.UserID), string(sub.PlanID),
		sub.InvestedAmount.String(), sub.TotalEarned.String(),
		formatTime(sub.StartDate), formatTime(sub.EndDate), formatTime(sub.LastAccrual),
		string(sub.Status), formatTime(sub.CreatedAt))
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub mining.Subscription) error {
	return insertSubscription(ctx, s.db, sub)
}

// CreateSubscriptionWithDebit commits the purchase debit and the
// subscription row in one transaction, serialized per user like Apply.
func (s *Store) CreateSubscriptionWithDebit(ctx context.Context, debit ledger.Entry, sub mining.Subscription) (ledger.Entry, error) {
	lk := s.userLock(debit.UserID)
	lk.Lock()
	defer lk.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin purchase: %w", err)
	}
	defer tx.Rollback()

	applied, err := s.applyTx(ctx, tx, debit)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := insertSubscription(ctx, tx, sub); err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit purchase: %w", err)
	}
	return applied, nil
}

func (s *Store) Subscription(ctx context.Context, id ledger.SubscriptionID) (mining.Subscription, error) {
	row := s.db.QueryRowContext(ctx, subscriptionSelect+` WHERE id = ?`, string(id))
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mining.Subscription{}, ledger.ErrNotFound
	}
	return sub, err
}

func (s *Store) SubscriptionsByUser(ctx context.Context, userID ledger.UserID) ([]mining.Subscription, error) {
	return s.querySubscriptions(ctx, subscriptionSelect+` WHERE user_id = ? ORDER BY created_at DESC`, string(userID))
}

func (s *Store) ActiveSubscriptions(ctx context.Context) ([]mining.Subscription, error) {
	return s.querySubscriptions(ctx, subscriptionSelect+` WHERE status = ? ORDER BY start_date`, string(mining.StatusActive))
}

func (s *Store) UpdateSubscription(ctx context.Context, sub mining.Subscription) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET total_earned = ?, last_accrual = ?, status = ? WHERE id = ?`,
		sub.TotalEarned.String(), formatTime(sub.LastAccrual), string(sub.Status), string(sub.ID))
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

const subscriptionSelect = `SELECT id, user_id, plan_id, invested_amount, total_earned,
	start_date, end_date, last_accrual, status, created_at FROM subscriptions`

func (s *Store) querySubscriptions(ctx context.Context, query string, args ...any) ([]mining.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var result []mining.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func scanSubscription(row rowScanner) (mining.Subscription, error) {
	var sub mining.Subscription
	var id, uid, pid, invested, earned, start, end, lastAccrual, status, createdAt string
	if err := row.Scan(&id, &uid, &pid, &invested, &earned, &start, &end,
		&lastAccrual, &status, &createdAt); err != nil {
		return mining.Subscription{}, err
	}
	sub.ID = ledger.SubscriptionID(id)
	sub.UserID = ledger.UserID(uid)
	sub.PlanID = plans.PlanID(pid)
	sub.InvestedAmount = parseDecimal(invested)
	sub.TotalEarned = parseDecimal(earned)
	sub.StartDate = parseTime(start)
	sub.EndDate = parseTime(end)
	sub.LastAccrual = parseTime(lastAccrual)
	sub.Status = mining.Status(status)
	sub.CreatedAt = parseTime(createdAt)
	return sub, nil
}

// =============================================================================
// DEPOSIT STORE
// =============================================================================

func (s *Store) CreateDeposit(ctx context.Context, d wallet.Deposit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deposits (id, user_id, amount, crypto_address, tx_hash, status,
		                       failure_reason, created_at, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.UserID), d.Amount.String(), d.CryptoAddress, d.TxHash,
		string(d.Status), d.FailureReason, formatTime(d.CreatedAt), formatTimePtr(d.ConfirmedAt))
	if err != nil {
		return fmt.Errorf("create deposit: %w", err)
	}
	return nil
}

func (s *Store) Deposit(ctx context.Context, id string) (wallet.Deposit, error) {
	row := s.db.QueryRowContext(ctx, depositSelect+` WHERE id = ?`, id)
	d, err := scanDeposit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Deposit{}, ledger.ErrNotFound
	}
	return d, err
}

func (s *Store) DepositsByUser(ctx context.Context, userID ledger.UserID) ([]wallet.Deposit, error) {
	rows, err := s.db.QueryContext(ctx,
		depositSelect+` WHERE user_id = ? ORDER BY created_at DESC`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("query deposits: %w", err)
	}
	defer rows.Close()

	var result []wallet.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) UpdateDeposit(ctx context.Context, d wallet.Deposit) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deposits SET tx_hash = ?, status = ?, failure_reason = ?, confirmed_at = ? WHERE id = ?`,
		d.TxHash, string(d.Status), d.FailureReason, formatTimePtr(d.ConfirmedAt), d.ID)
	if err != nil {
		return fmt.Errorf("update deposit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

const depositSelect = `SELECT id, user_id, amount, crypto_address, COALESCE(tx_hash, ''),
	status, COALESCE(failure_reason, ''), created_at, confirmed_at FROM deposits`

func scanDeposit(row rowScanner) (wallet.Deposit, error) {
	var d wallet.Deposit
	var uid, amount, status, createdAt string
	var confirmedAt sql.NullString
	if err := row.Scan(&d.ID, &uid, &amount, &d.CryptoAddress, &d.TxHash,
		&status, &d.FailureReason, &createdAt, &confirmedAt); err != nil {
		return wallet.Deposit{}, err
	}
	d.UserID = ledger.UserID(uid)
	d.Amount = parseDecimal(amount)
	d.Status = wallet.DepositStatus(status)
	d.CreatedAt = parseTime(createdAt)
	d.ConfirmedAt = parseTimePtr(confirmedAt)
	return d, nil
}

// =============================================================================
// WITHDRAWAL STORE
// =============================================================================

func insertWithdrawal(ctx context.Context, db execer, w wallet.Withdrawal) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO withdrawals (id, user_id, amount, wallet_address, status,
		                          reject_reason, created_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, string(w.UserID), w.Amount.String(), w.WalletAddress,
		string(w.Status), w.RejectReason, formatTime(w.CreatedAt), formatTimePtr(w.ProcessedAt))
	if err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

func (s *Store) CreateWithdrawal(ctx context.Context, w wallet.Withdrawal) error {
	return insertWithdrawal(ctx, s.db, w)
}

// CreateWithdrawalWithHold commits the hold debit and the pending
// request row in one transaction, serialized per user like Apply.
func (s *Store) CreateWithdrawalWithHold(ctx context.Context, hold ledger.Entry, w wallet.Withdrawal) (ledger.Entry, error) {
	lk := s.userLock(hold.UserID)
	lk.Lock()
	defer lk.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("begin withdrawal: %w", err)
	}
	defer tx.Rollback()

	applied, err := s.applyTx(ctx, tx, hold)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := insertWithdrawal(ctx, tx, w); err != nil {
		return ledger.Entry{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Entry{}, fmt.Errorf("commit withdrawal: %w", err)
	}
	return applied, nil
}

func (s *Store) Withdrawal(ctx context.Context, id string) (wallet.Withdrawal, error) {
	row := s.db.QueryRowContext(ctx, withdrawalSelect+` WHERE id = ?`, id)
	w, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.Withdrawal{}, ledger.ErrNotFound
	}
	return w, err
}

func (s *Store) WithdrawalsByUser(ctx context.Context, userID ledger.UserID) ([]wallet.Withdrawal, error) {
	rows, err := s.db.QueryContext(ctx,
		withdrawalSelect+` WHERE user_id = ? ORDER BY created_at DESC`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("query withdrawals: %w", err)
	}
	defer rows.Close()

	var result []wallet.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (s *Store) UpdateWithdrawal(ctx context.Context, w wallet.Withdrawal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE withdrawals SET status = ?, reject_reason = ?, processed_at = ? WHERE id = ?`,
		string(w.Status), w.RejectReason, formatTimePtr(w.ProcessedAt), w.ID)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

const withdrawalSelect = `SELECT id, user_id, amount, wallet_address, status,
	COALESCE(reject_reason, ''), created_at, processed_at FROM withdrawals`

func scanWithdrawal(row rowScanner) (wallet.Withdrawal, error) {
	var w wallet.Withdrawal
	var uid, amount, status, createdAt string
	var processedAt sql.NullString
	if err := row.Scan(&w.ID, &uid, &amount, &w.WalletAddress, &status,
		&w.RejectReason, &createdAt, &processedAt); err != nil {
		return wallet.Withdrawal{}, err
	}
	w.UserID = ledger.UserID(uid)
	w.Amount = parseDecimal(amount)
	w.Status = wallet.WithdrawalStatus(status)
	w.CreatedAt = parseTime(createdAt)
	w.ProcessedAt = parseTimePtr(processedAt)
	return w, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface checks.
var (
	_ ledger.Store             = (*Store)(nil)
	_ plans.Registry           = (*Store)(nil)
	_ mining.SubscriptionStore = (*Store)(nil)
	_ wallet.DepositStore      = (*Store)(nil)
	_ wallet.WithdrawalStore   = (*Store)(nil)
)
