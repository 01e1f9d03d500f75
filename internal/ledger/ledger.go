// Package ledger defines the balance-holding service the billing engine
// debits from, plus in-memory and sqlite-backed implementations. The engine
// treats the ledger as an external collaborator: it may be absent entirely,
// and each withdrawal reports success or failure with a reason instead of
// raising errors through the decision pipeline.
package ledger

import "github.com/shopspring/decimal"

// Result is the outcome of a withdrawal attempt.
type Result struct {
	OK     bool
	Reason string
}

// Success returns a successful Result.
func Success() Result { return Result{OK: true} }

// Failure returns a failed Result carrying an opaque reason string.
func Failure(reason string) Result { return Result{Reason: reason} }

// Ledger is the balance service consumed by the billing coordinator.
//
// HasFunds may return an error when the backing service cannot answer the
// affordability question; callers then fall back to comparing against
// GetBalance locally. WithdrawScoped is the domain-qualified fallback
// variant tried exactly once after a failed Withdraw.
type Ledger interface {
	GetBalance(principal string) (decimal.Decimal, error)
	HasFunds(principal string, amount decimal.Decimal) (bool, error)
	Withdraw(principal string, amount decimal.Decimal) Result
	WithdrawScoped(principal, scope string, amount decimal.Decimal) Result
}
