package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Economy.RoundToDecimals = 2
	cfg.Economy.CurrencySymbol = "$"
	cfg.Types = map[string]config.TypeConfig{
		"TELEPORT": {
			Charge: config.ChargeConfig{Mode: "FIXED", Fixed: 10},
		},
		"OPEN": {
			Charge: config.ChargeConfig{Mode: "PERCENT_BALANCE", Percent: 3.5},
		},
	}
	return cfg
}

func TestRuleset_BaseCostFixed(t *testing.T) {
	rs := NewRuleset(testConfig())

	got := rs.BaseCost(CategoryTeleport, decimal.NewFromInt(1000))
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("BaseCost(TELEPORT) = %s, want 10", got)
	}

	// Fixed cost ignores the balance entirely.
	got = rs.BaseCost(CategoryTeleport, decimal.Zero)
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("BaseCost(TELEPORT, 0) = %s, want 10", got)
	}
}

func TestRuleset_BaseCostPercent(t *testing.T) {
	rs := NewRuleset(testConfig())

	tests := []struct {
		name    string
		balance decimal.Decimal
		want    decimal.Decimal
	}{
		{"balance 1000 at 3.5%", decimal.NewFromInt(1000), decimal.NewFromInt(35)},
		{"zero balance", decimal.Zero, decimal.Zero},
		{"negative balance floors at zero", decimal.NewFromInt(-200), decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rs.BaseCost(CategoryOpen, tt.balance)
			if !got.Equal(tt.want) {
				t.Errorf("BaseCost(OPEN, %s) = %s, want %s", tt.balance, got, tt.want)
			}
		})
	}
}

func TestRuleset_BaseCostNeverNegative(t *testing.T) {
	cfg := testConfig()
	cfg.Types["TELEPORT"] = config.TypeConfig{
		Charge: config.ChargeConfig{Mode: "FIXED", Fixed: -5},
	}
	rs := NewRuleset(cfg)

	got := rs.BaseCost(CategoryTeleport, decimal.NewFromInt(100))
	if got.IsNegative() {
		t.Errorf("BaseCost with negative fixed = %s, want >= 0", got)
	}
}

func TestRuleset_UnknownCategoryDefaults(t *testing.T) {
	rs := NewRuleset(testConfig())

	if !rs.IsEnabled(Category("CUSTOM")) {
		t.Error("unknown category should default to enabled")
	}
	got := rs.BaseCost(Category("CUSTOM"), decimal.NewFromInt(500))
	if !got.IsZero() {
		t.Errorf("unknown category BaseCost = %s, want 0", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"FIXED", ModeFixed},
		{"fixed", ModeFixed},
		{"PERCENT_BALANCE", ModePercentBalance},
		{" percent_balance ", ModePercentBalance},
		{"", ModeFixed},
		{"bogus", ModeFixed},
	}

	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRuleset_Format(t *testing.T) {
	cfg := testConfig()
	rs := NewRuleset(cfg)

	tests := []struct {
		name string
		in   decimal.Decimal
		want string
	}{
		{"whole number", decimal.NewFromInt(10), "10"},
		{"strips trailing zeros", decimal.RequireFromString("35.00"), "35"},
		{"keeps significant fraction", decimal.RequireFromString("12.50"), "12.5"},
		{"rounds half up", decimal.RequireFromString("2.345"), "2.35"},
		{"zero", decimal.Zero, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rs.Format(tt.in); got != tt.want {
				t.Errorf("Format(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRuleset_FormatWithOneDecimalPlace(t *testing.T) {
	cfg := testConfig()
	cfg.Economy.RoundToDecimals = 1
	rs := NewRuleset(cfg)

	// 1000 x 3.5% = 35.00 formats to "35" at one decimal place.
	cost := rs.BaseCost(CategoryOpen, decimal.NewFromInt(1000))
	if got := rs.Format(cost); got != "35" {
		t.Errorf("Format(%s) = %q, want \"35\"", cost, got)
	}
}

func TestRuleset_FormatIdempotent(t *testing.T) {
	rs := NewRuleset(testConfig())

	for _, raw := range []string{"0", "10", "35.00", "12.345", "999999.99", "0.005"} {
		d := decimal.RequireFromString(raw)
		once := rs.Format(d)
		twice := rs.Format(decimal.RequireFromString(once))
		if once != twice {
			t.Errorf("Format not idempotent for %s: %q then %q", raw, once, twice)
		}
	}
}

func TestRuleset_NegativeRoundingClamped(t *testing.T) {
	cfg := testConfig()
	cfg.Economy.RoundToDecimals = -3
	rs := NewRuleset(cfg)

	if rs.Rounding() != 0 {
		t.Errorf("Rounding() = %d, want 0", rs.Rounding())
	}
	if got := rs.Format(decimal.RequireFromString("12.6")); got != "13" {
		t.Errorf("Format(12.6) at 0 places = %q, want \"13\"", got)
	}
}
