package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteLedger is a Ledger backed by a local SQLite database. Balances are
// stored as decimal strings so no precision is lost to floating point.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the ledger database at path.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Initialize creates the accounts table.
func (l *SQLiteLedger) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		principal  TEXT PRIMARY KEY,
		balance    TEXT NOT NULL DEFAULT '0'
	);`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close shuts down the database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Deposit credits the principal's balance, creating the account if needed.
func (l *SQLiteLedger) Deposit(principal string, amount decimal.Decimal) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	bal, err := balanceTx(tx, principal)
	if err != nil {
		return err
	}
	next := bal.Add(amount)
	if _, err := tx.Exec(
		`INSERT INTO accounts (principal, balance) VALUES (?, ?)
		 ON CONFLICT(principal) DO UPDATE SET balance = excluded.balance`,
		principal, next.String(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBalance returns the principal's balance; unknown principals hold zero.
func (l *SQLiteLedger) GetBalance(principal string) (decimal.Decimal, error) {
	var raw string
	err := l.db.QueryRow(`SELECT balance FROM accounts WHERE principal = ?`, principal).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query balance: %w", err)
	}
	bal, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for %s: %w", principal, err)
	}
	return bal, nil
}

// HasFunds reports whether the principal can cover the amount.
func (l *SQLiteLedger) HasFunds(principal string, amount decimal.Decimal) (bool, error) {
	bal, err := l.GetBalance(principal)
	if err != nil {
		return false, err
	}
	return bal.GreaterThanOrEqual(amount), nil
}

// Withdraw debits the principal inside a transaction, failing when the
// balance does not cover the amount.
func (l *SQLiteLedger) Withdraw(principal string, amount decimal.Decimal) Result {
	if amount.IsNegative() {
		return Failure("negative amount")
	}

	tx, err := l.db.Begin()
	if err != nil {
		return Failure(err.Error())
	}
	defer tx.Rollback()

	bal, err := balanceTx(tx, principal)
	if err != nil {
		return Failure(err.Error())
	}
	if bal.LessThan(amount) {
		return Failure("insufficient funds")
	}

	next := bal.Sub(amount)
	if _, err := tx.Exec(
		`INSERT INTO accounts (principal, balance) VALUES (?, ?)
		 ON CONFLICT(principal) DO UPDATE SET balance = excluded.balance`,
		principal, next.String(),
	); err != nil {
		return Failure(err.Error())
	}
	if err := tx.Commit(); err != nil {
		return Failure(err.Error())
	}
	return Success()
}

// WithdrawScoped behaves like Withdraw; the sqlite ledger keeps one
// balance per principal across all scopes.
func (l *SQLiteLedger) WithdrawScoped(principal, scope string, amount decimal.Decimal) Result {
	return l.Withdraw(principal, amount)
}

func balanceTx(tx *sql.Tx, principal string) (decimal.Decimal, error) {
	var raw string
	err := tx.QueryRow(`SELECT balance FROM accounts WHERE principal = ?`, principal).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}
