package billing

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/capability"
	"github.com/tollgate/tollgate/internal/ledger"
	"github.com/tollgate/tollgate/internal/pricing"
)

// MessageKey builds the catalog key for a category outcome, e.g.
// tollgate.teleport.charged.
func MessageKey(cat pricing.Category, outcome string) string {
	return pricing.Namespace + "." + cat.Key() + "." + outcome
}

// UnavailableMessageKey is emitted when a ledger is required but absent.
const UnavailableMessageKey = pricing.Namespace + ".economy.unavailable"

// Coordinator orchestrates the charge-or-deny pipeline for action
// attempts. Each decision runs synchronously to completion: one ruleset
// snapshot, one capability query, one balance query, at most one primary
// and one fallback withdrawal. No state is retained across calls.
//
// The affordability check and the withdrawal are not covered by a shared
// transaction; concurrent attempts by the same principal can both pass the
// check before either withdrawal lands. That window is accepted.
type Coordinator struct {
	runtime *pricing.Runtime
	calc    *Calculator
	caps    capability.Resolver
	ledger  ledger.Ledger // nil when no ledger is hooked

	// scope qualifies the fallback withdrawal variant.
	scope string

	sinks  []Sink
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator. A nil ledg means no ledger is
// hooked: decisions then pass through (or deny, when the ruleset requires
// a ledger). scope qualifies the fallback withdrawal; empty is valid.
func NewCoordinator(
	runtime *pricing.Runtime,
	calc *Calculator,
	caps capability.Resolver,
	ledg ledger.Ledger,
	scope string,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		runtime: runtime,
		calc:    calc,
		caps:    caps,
		ledger:  ledg,
		scope:   scope,
		logger:  logger.With("component", "billing.Coordinator"),
	}
}

// AddSink registers a decision sink. Sinks see every decision, including
// silent allows.
func (c *Coordinator) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// Charge runs the full decision pipeline for an action attempt and
// commits the withdrawal when funds suffice. The returned decision says
// whether the action may proceed and which message, if any, to show.
func (c *Coordinator) Charge(principal string, cat pricing.Category, dist Distance) Decision {
	rs := c.runtime.Get()
	d := c.decide(rs, PhaseCharge, principal, cat, dist)
	c.report(d)
	return d
}

// Precheck runs the affordability gate only: it resolves the cost and
// compares it to the balance but never withdraws. Callers use it for
// actions that other collaborators can still veto; the balance may change
// before the later Charge call, which is accepted.
func (c *Coordinator) Precheck(principal string, cat pricing.Category, dist Distance) Decision {
	rs := c.runtime.Get()
	d := c.decide(rs, PhasePrecheck, principal, cat, dist)
	c.report(d)
	return d
}

func (c *Coordinator) decide(rs *pricing.Ruleset, phase Phase, principal string, cat pricing.Category, dist Distance) Decision {
	d := Decision{
		ID:        ulid.Make().String(),
		Timestamp: time.Now().UTC(),
		Phase:     phase,
		Principal: principal,
		Category:  cat,
		Cost:      decimal.Zero,
	}

	if !rs.EngineEnabled() || !rs.IsEnabled(cat) {
		d.Outcome = OutcomeDisabled
		d.Allowed = true
		d.CostSource = SourceDisabled
		return d
	}

	if c.ledger == nil {
		if rs.RequireLedger() {
			d.Outcome = OutcomeUnavailable
			d.MessageKey = UnavailableMessageKey
			d.Placeholders = map[string]string{"type": cat.Key()}
			return d
		}
		// Cannot charge what cannot be billed.
		d.Outcome = OutcomeExempt
		d.Allowed = true
		return d
	}

	caps := c.caps.Capabilities(principal)

	balance, err := c.ledger.GetBalance(principal)
	if err != nil {
		c.logger.Warn("balance query failed, passing through",
			"principal", principal,
			"category", string(cat),
			"error", err,
		)
		d.Outcome = OutcomeExempt
		d.Allowed = true
		return d
	}

	res := c.calc.Resolve(rs, cat, caps, balance, dist)
	d.Cost = res.Cost
	d.CostSource = res.Source

	if res.Source == SourceExempt {
		d.Outcome = OutcomeExempt
		d.Allowed = true
		return d
	}
	if res.Free() {
		d.Outcome = OutcomeZeroCost
		d.Allowed = true
		return d
	}

	if !c.affordable(principal, balance, res.Cost) {
		d.Outcome = OutcomeInsufficient
		d.MessageKey = MessageKey(cat, "insufficient")
		d.Placeholders = c.placeholders(rs, cat, res.Cost)
		return d
	}

	if phase == PhasePrecheck {
		d.Outcome = OutcomePassed
		d.Allowed = true
		return d
	}

	return c.withdraw(rs, d, cat, principal, res.Cost)
}

// withdraw attempts the primary withdrawal, then the scoped fallback
// exactly once. The charged message is emitted only after a success, so a
// failed primary followed by a successful fallback reports it once.
func (c *Coordinator) withdraw(rs *pricing.Ruleset, d Decision, cat pricing.Category, principal string, cost decimal.Decimal) Decision {
	r := c.ledger.Withdraw(principal, cost)
	if !r.OK {
		c.logger.Debug("primary withdrawal failed, trying scoped fallback",
			"principal", principal,
			"category", string(cat),
			"reason", r.Reason,
		)
		r = c.ledger.WithdrawScoped(principal, c.scope, cost)
	}

	if !r.OK {
		d.Outcome = OutcomeFailed
		d.MessageKey = MessageKey(cat, "failed")
		ph := c.placeholders(rs, cat, cost)
		ph["error"] = r.Reason
		d.Placeholders = ph
		return d
	}

	d.Outcome = OutcomeCharged
	d.Allowed = true
	d.MessageKey = MessageKey(cat, "charged")
	d.Placeholders = c.placeholders(rs, cat, cost)
	return d
}

// affordable asks the ledger first and falls back to a local comparison
// when the affordability query itself fails.
func (c *Coordinator) affordable(principal string, balance, cost decimal.Decimal) bool {
	ok, err := c.ledger.HasFunds(principal, cost)
	if err != nil {
		return balance.GreaterThanOrEqual(cost)
	}
	return ok
}

func (c *Coordinator) placeholders(rs *pricing.Ruleset, cat pricing.Category, cost decimal.Decimal) map[string]string {
	return map[string]string{
		"currency": rs.Currency(),
		"amount":   rs.Format(cost),
		"type":     cat.Key(),
	}
}

func (c *Coordinator) report(d Decision) {
	for _, s := range c.sinks {
		s.Record(d)
	}
}
