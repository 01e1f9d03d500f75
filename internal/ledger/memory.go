package ledger

import (
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryLedger is a process-local Ledger for tests and standalone use.
// Safe for concurrent use.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]decimal.Decimal)}
}

// Deposit credits the principal's balance, creating the account if needed.
func (m *MemoryLedger) Deposit(principal string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[principal] = m.balances[principal].Add(amount)
}

// GetBalance returns the principal's balance; unknown principals hold zero.
func (m *MemoryLedger) GetBalance(principal string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[principal], nil
}

// HasFunds reports whether the principal can cover the amount.
func (m *MemoryLedger) HasFunds(principal string, amount decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[principal].GreaterThanOrEqual(amount), nil
}

// Withdraw debits the principal if the balance covers the amount.
func (m *MemoryLedger) Withdraw(principal string, amount decimal.Decimal) Result {
	if amount.IsNegative() {
		return Failure("negative amount")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balances[principal]
	if bal.LessThan(amount) {
		return Failure("insufficient funds")
	}
	m.balances[principal] = bal.Sub(amount)
	return Success()
}

// WithdrawScoped behaves like Withdraw; the in-memory ledger holds a
// single balance per principal regardless of scope.
func (m *MemoryLedger) WithdrawScoped(principal, scope string, amount decimal.Decimal) Result {
	return m.Withdraw(principal, amount)
}
