// Package pricing holds the immutable pricing ruleset built from a config
// snapshot, plus the runtime holder that publishes the active ruleset to
// concurrent readers. A reload always constructs a brand-new Ruleset; no
// ruleset is ever mutated after construction.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/config"
)

// Namespace is the capability and message-key prefix owned by the engine.
const Namespace = "tollgate"

// Category identifies a chargeable action kind.
type Category string

// Standard categories. The engine treats these as opaque tags; any category
// present in the config is honored.
const (
	CategoryTeleport   Category = "TELEPORT"
	CategoryOpen       Category = "OPEN"
	CategoryAutoLoot   Category = "AUTOLOOT"
	CategoryBlockBreak Category = "BLOCK_BREAK"
)

// Key returns the lowercase short key used in capability strings and
// message-catalog keys, e.g. "teleport" or "block_break".
func (c Category) Key() string {
	return strings.ToLower(string(c))
}

// Mode selects how a category's base cost is computed.
type Mode string

const (
	// ModeFixed charges the configured flat amount.
	ModeFixed Mode = "FIXED"
	// ModePercentBalance charges a percentage of the current balance.
	ModePercentBalance Mode = "PERCENT_BALANCE"
)

// ParseMode maps a config string to a Mode. Unrecognized values fall back
// to ModeFixed rather than failing the whole config.
func ParseMode(s string) Mode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ModePercentBalance):
		return ModePercentBalance
	default:
		return ModeFixed
	}
}

// Rule is the resolved pricing rule for one category. Monetary fields are
// clamped non-negative at construction.
type Rule struct {
	Enabled           bool
	RequirePermission bool
	Permission        string
	Mode              Mode
	Fixed             decimal.Decimal
	Percent           decimal.Decimal
	OverrideScan      bool
	OverridePattern   string
}

// Ruleset is an immutable view over one loaded pricing configuration.
// Readers obtain a Ruleset from Runtime.Get and use it for the whole
// decision so a concurrent reload cannot tear the computation.
type Ruleset struct {
	engineEnabled   bool
	requireLedger   bool
	defaultLanguage string
	rounding        int
	currency        string
	rules           map[Category]Rule
}

// NewRuleset builds an immutable ruleset from a config snapshot.
func NewRuleset(cfg *config.Config) *Ruleset {
	rounding := cfg.Economy.RoundToDecimals
	if rounding < 0 {
		rounding = 0
	}

	rules := make(map[Category]Rule, len(cfg.Types))
	for name, tc := range cfg.Types {
		rules[Category(name)] = Rule{
			Enabled:           tc.IsEnabled(),
			RequirePermission: tc.RequirePermission,
			Permission:        tc.Permission,
			Mode:              ParseMode(tc.Charge.Mode),
			Fixed:             clampNonNegative(decimal.NewFromFloat(tc.Charge.Fixed)),
			Percent:           clampNonNegative(decimal.NewFromFloat(tc.Charge.Percent)),
			OverrideScan:      tc.Overrides.FromPermission,
			OverridePattern:   tc.Overrides.Pattern,
		}
	}

	return &Ruleset{
		engineEnabled:   cfg.Enabled,
		requireLedger:   cfg.Economy.RequireLedger,
		defaultLanguage: cfg.DefaultLanguage,
		rounding:        rounding,
		currency:        cfg.Economy.CurrencySymbol,
		rules:           rules,
	}
}

// Rule returns the rule for a category. Categories absent from the config
// get a default rule: enabled, fixed mode, zero cost.
func (r *Ruleset) Rule(cat Category) Rule {
	if rule, ok := r.rules[cat]; ok {
		return rule
	}
	return Rule{Enabled: true, Mode: ModeFixed}
}

// Categories returns every category present in the configuration.
func (r *Ruleset) Categories() []Category {
	out := make([]Category, 0, len(r.rules))
	for cat := range r.rules {
		out = append(out, cat)
	}
	return out
}

// Lookup finds a configured category by case-insensitive name.
func (r *Ruleset) Lookup(name string) (Category, Rule, bool) {
	for cat, rule := range r.rules {
		if strings.EqualFold(string(cat), name) {
			return cat, rule, true
		}
	}
	return "", Rule{}, false
}

// IsEnabled reports whether charging for the category is on.
func (r *Ruleset) IsEnabled(cat Category) bool {
	return r.Rule(cat).Enabled
}

// RequiresPermission returns the permission gate for a category: whether
// charging is limited to holders of a grant, and which grant.
func (r *Ruleset) RequiresPermission(cat Category) (bool, string) {
	rule := r.Rule(cat)
	return rule.RequirePermission, rule.Permission
}

// BaseCost computes the configured cost for a category before overrides:
// the fixed amount for ModeFixed, or balance x percent/100 for
// ModePercentBalance, floored at zero.
func (r *Ruleset) BaseCost(cat Category, balance decimal.Decimal) decimal.Decimal {
	rule := r.Rule(cat)
	switch rule.Mode {
	case ModePercentBalance:
		return clampNonNegative(balance.Mul(rule.Percent).Div(decimal.NewFromInt(100)))
	default:
		return rule.Fixed
	}
}

// EngineEnabled reports the top-level engine gate.
func (r *Ruleset) EngineEnabled() bool { return r.engineEnabled }

// RequireLedger reports whether a missing ledger denies instead of allows.
func (r *Ruleset) RequireLedger() bool { return r.requireLedger }

// DefaultLanguage returns the configured fallback locale.
func (r *Ruleset) DefaultLanguage() string { return r.defaultLanguage }

// Rounding returns the number of decimal places for display rounding.
func (r *Ruleset) Rounding() int { return r.rounding }

// Currency returns the configured currency symbol.
func (r *Ruleset) Currency() string { return r.currency }

// Format renders a monetary amount: rounded half-up to the configured
// decimal places, trailing fractional zeros stripped, plain notation.
func (r *Ruleset) Format(amount decimal.Decimal) string {
	s := amount.StringFixed(int32(r.rounding))
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
