// Package placeholder expands text placeholders describing the current
// pricing: currency symbol, per-category fixed cost, and per-category
// percentage. Host platforms surface these in chat, signs, or menus.
package placeholder

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/pricing"
)

// Expander resolves placeholder parameters against the live ruleset.
// Unknown parameters expand to the empty string, never an error.
type Expander struct {
	runtime *pricing.Runtime
}

// NewExpander creates an Expander reading from the given runtime.
func NewExpander(runtime *pricing.Runtime) *Expander {
	return &Expander{runtime: runtime}
}

// Expand resolves one placeholder parameter:
//
//	currency_symbol            the configured currency symbol
//	<category>_cost            symbol + formatted fixed fee
//	<category>_cost_percentage percent value + "%"
//
// Category names match case-insensitively.
func (e *Expander) Expand(param string) string {
	if param == "" {
		return ""
	}
	rs := e.runtime.Get()
	lower := strings.ToLower(strings.TrimSpace(param))

	switch lower {
	case "currency_symbol", "currencysymbol", "currency-symbol":
		return rs.Currency()
	}

	if name, ok := strings.CutSuffix(lower, "_cost_percentage"); ok {
		return e.percent(rs, name)
	}
	if name, ok := strings.CutSuffix(lower, "_cost"); ok {
		return e.fixedCost(rs, name)
	}
	return ""
}

func (e *Expander) fixedCost(rs *pricing.Ruleset, name string) string {
	_, rule, ok := rs.Lookup(name)
	if !ok {
		return ""
	}
	value := rs.Format(rule.Fixed)
	if rs.Currency() == "" {
		return value
	}
	return rs.Currency() + value
}

func (e *Expander) percent(rs *pricing.Ruleset, name string) string {
	_, rule, ok := rs.Lookup(name)
	if !ok {
		return ""
	}
	return stripZeros(rule.Percent) + "%"
}

func stripZeros(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}
