package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/i18n"
	"github.com/tollgate/tollgate/internal/pricing"
)

// Phase distinguishes the non-mutating affordability gate from the
// committing charge pipeline.
type Phase string

const (
	PhasePrecheck Phase = "precheck"
	PhaseCharge   Phase = "charge"
)

// Outcome is the terminal state of one billing decision. Every decision
// reaches exactly one outcome within a single call; no state carries over.
type Outcome string

const (
	// OutcomeDisabled: the category (or the whole engine) is off.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeExempt: the principal is not subject to charging, or no
	// ledger is hooked and charging passes through.
	OutcomeExempt Outcome = "exempt"
	// OutcomeZeroCost: the resolved cost was zero or less.
	OutcomeZeroCost Outcome = "zero_cost"
	// OutcomeInsufficient: the balance does not cover the cost.
	OutcomeInsufficient Outcome = "insufficient"
	// OutcomeCharged: the withdrawal landed.
	OutcomeCharged Outcome = "charged"
	// OutcomeFailed: both the primary and the fallback withdrawal failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeUnavailable: a ledger is required by config but absent.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomePassed: a precheck found the balance sufficient.
	OutcomePassed Outcome = "passed"
)

// Decision is the ephemeral record of one action attempt. It is created,
// reported to sinks, and returned to the caller within a single call.
type Decision struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Phase     Phase             `json:"phase"`
	Principal string            `json:"principal"`
	Category  pricing.Category  `json:"category"`
	Cost      decimal.Decimal   `json:"cost"`
	CostSource string           `json:"cost_source,omitempty"`
	Outcome   Outcome           `json:"outcome"`
	Allowed   bool              `json:"allowed"`

	// MessageKey and Placeholders describe the user-facing outcome
	// message; both are empty for silent outcomes.
	MessageKey   string            `json:"message_key,omitempty"`
	Placeholders map[string]string `json:"placeholders,omitempty"`
}

// Denied reports whether the action should be cancelled.
func (d Decision) Denied() bool { return !d.Allowed }

// RenderMessage resolves the decision's message against a catalog for the
// given locale. Silent decisions render as the empty string.
func (d Decision) RenderMessage(catalog *i18n.Catalog, locale string) string {
	if d.MessageKey == "" {
		return ""
	}
	return catalog.Translate(d.MessageKey, d.Placeholders, locale)
}

// Sink receives every completed decision, e.g. the audit trail and the
// live feed. Implementations must be fast and must not block the
// decision path.
type Sink interface {
	Record(d Decision)
}
