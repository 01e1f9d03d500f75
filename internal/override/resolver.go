// Package override resolves capability-encoded price overrides. Two
// mechanisms exist: a configurable pattern scan that extracts a price from
// grant strings matching a regular expression template, and a fixed
// chargebypass namespace scan. A category uses one or the other, selected
// by its override configuration, never both.
package override

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/capability"
	"github.com/tollgate/tollgate/internal/pricing"
)

// bypassCeiling caps parsed bypass values; suffixes above it are clamped
// down rather than rejected.
var bypassCeiling = decimal.NewFromInt(1_000_000)

// Source labels where a resolved price came from.
type Source string

const (
	SourcePattern Source = "override"
	SourceBypass  Source = "bypass"
)

// Resolver scans a principal's grant set for price overrides.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger.With("component", "override.Resolver")}
}

// Resolve applies the category's configured override policy to the grant
// set. It returns the override amount and its source, or ok=false when no
// override governs this decision.
func (r *Resolver) Resolve(rule pricing.Rule, cat pricing.Category, caps capability.Set) (decimal.Decimal, Source, bool) {
	if !rule.OverrideScan {
		return decimal.Zero, "", false
	}
	if rule.OverridePattern != "" {
		if v, ok := r.Pattern(rule.OverridePattern, cat, caps); ok {
			return v, SourcePattern, true
		}
		return decimal.Zero, "", false
	}
	if v, ok := r.Bypass(cat, caps); ok {
		return v, SourceBypass, true
	}
	return decimal.Zero, "", false
}

// Pattern scans granted capabilities against the pattern template. The
// category's short key is substituted for {type} and the result compiled
// case-insensitively; the price is the first captured group of a match.
//
// When several grants match, the cheapest value wins. The legacy engine
// returned whichever match the host enumerated first, which made the
// resolved price depend on grant-storage order; cheapest-wins keeps the
// result deterministic and consistent with the bypass scan.
//
// Malformed templates and non-numeric captures are skipped, never fatal.
func (r *Resolver) Pattern(pattern string, cat pricing.Category, caps capability.Set) (decimal.Decimal, bool) {
	expanded := strings.ReplaceAll(pattern, "{type}", regexp.QuoteMeta(cat.Key()))
	re, err := regexp.Compile("(?i)" + expanded)
	if err != nil {
		r.logger.Warn("invalid override pattern, skipping scan",
			"category", string(cat),
			"pattern", pattern,
			"error", err,
		)
		return decimal.Zero, false
	}

	var best decimal.Decimal
	found := false
	for _, grant := range caps.Granted() {
		m := re.FindStringSubmatch(grant)
		if len(m) < 2 {
			continue
		}
		v, err := decimal.NewFromString(m[1])
		if err != nil {
			continue
		}
		if !found || v.LessThan(best) {
			best = v
			found = true
		}
	}
	return best, found
}

// Bypass scans granted capabilities under
// tollgate.chargebypass.<category>.<amount> and returns the minimum
// amount, clamped into [0, 1000000]. Malformed suffixes are skipped.
func (r *Resolver) Bypass(cat pricing.Category, caps capability.Set) (decimal.Decimal, bool) {
	prefix := pricing.Namespace + ".chargebypass." + cat.Key() + "."

	var best decimal.Decimal
	found := false
	for _, grant := range caps.Granted() {
		lower := strings.ToLower(grant)
		if !strings.HasPrefix(lower, prefix) {
			continue
		}
		v, err := decimal.NewFromString(lower[len(prefix):])
		if err != nil {
			continue
		}
		v = clampBypass(v)
		if !found || v.LessThan(best) {
			best = v
			found = true
		}
	}
	return best, found
}

func clampBypass(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(bypassCeiling) {
		return bypassCeiling
	}
	return d
}
