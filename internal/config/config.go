// Package config defines the Tollgate configuration schema and the loader
// used to read, default, and hot-reload it. The schema mirrors the pricing
// file consumed by the billing engine: a global economy section plus one
// block per chargeable action category.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Tollgate configuration.
type Config struct {
	// Enabled gates the whole engine. When false every decision is a
	// pass-through allow.
	Enabled bool `yaml:"enabled"`

	DefaultLanguage string `yaml:"default-language"`
	LanguagesDir    string `yaml:"languages-dir"`

	Economy EconomyConfig         `yaml:"economy"`
	Admin   AdminConfig           `yaml:"admin"`
	Storage StorageConfig         `yaml:"storage"`
	Types   map[string]TypeConfig `yaml:"types"`
}

// EconomyConfig holds the globals shared by every category.
type EconomyConfig struct {
	RoundToDecimals int    `yaml:"round-to-decimals"`
	CurrencySymbol  string `yaml:"currency-symbol"`

	// RequireLedger turns a missing ledger from a pass-through allow into
	// a deny with the economy.unavailable message.
	RequireLedger bool `yaml:"require-ledger"`
}

// AdminConfig configures the management HTTP server.
type AdminConfig struct {
	Port        int    `yaml:"port"`
	ReloadToken string `yaml:"reload-token"`
	CORS        bool   `yaml:"cors"`
	LogLevel    string `yaml:"log-level"`
}

// StorageConfig locates the SQLite files used in standalone mode.
type StorageConfig struct {
	// Path is the decision-trail database.
	Path string `yaml:"path"`

	// LedgerPath is the self-hosted balance database. Empty means no
	// built-in ledger; the embedding host supplies one, or none at all.
	LedgerPath string `yaml:"ledger-path"`
}

// TypeConfig is the pricing block for one action category.
type TypeConfig struct {
	// Enabled defaults to true when omitted, matching the historical
	// behavior of absent category blocks.
	Enabled *bool `yaml:"enabled"`

	// RequirePermission limits charging to principals holding Permission.
	// Principals without the grant pass through uncharged.
	RequirePermission bool   `yaml:"require-permission"`
	Permission        string `yaml:"permission"`

	Charge    ChargeConfig    `yaml:"charge"`
	Overrides OverridesConfig `yaml:"overrides"`
}

// ChargeConfig selects the pricing rule for a category.
type ChargeConfig struct {
	Mode    string  `yaml:"mode"` // FIXED or PERCENT_BALANCE
	Fixed   float64 `yaml:"fixed"`
	Percent float64 `yaml:"percent"`
}

// OverridesConfig controls capability-encoded price overrides.
//
// FromPermission enables override scanning for the category. A non-empty
// Pattern selects the pattern scan (the category key is substituted for
// {type} and the result compiled case-insensitively); an empty Pattern
// selects the chargebypass namespace scan instead. The two mechanisms are
// alternatives, never combined.
type OverridesConfig struct {
	FromPermission bool   `yaml:"from-permission"`
	Pattern        string `yaml:"pattern"`
}

// IsEnabled reports whether the category is enabled, defaulting to true.
func (t TypeConfig) IsEnabled() bool {
	if t.Enabled == nil {
		return true
	}
	return *t.Enabled
}

// DefaultConfig returns a config with sensible defaults for zero-config
// startup: all four standard categories enabled at zero cost.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLanguage: "en_us",
		LanguagesDir:    "./languages",
		Economy: EconomyConfig{
			RoundToDecimals: 2,
			CurrencySymbol:  "$",
		},
		Admin: AdminConfig{
			Port:     6880,
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Path: "./tollgate.db",
		},
		Types: map[string]TypeConfig{
			"TELEPORT":    {Charge: ChargeConfig{Mode: "FIXED"}},
			"OPEN":        {Charge: ChargeConfig{Mode: "FIXED"}},
			"AUTOLOOT":    {Charge: ChargeConfig{Mode: "FIXED"}},
			"BLOCK_BREAK": {Charge: ChargeConfig{Mode: "FIXED"}},
		},
	}
}

// starterConfig is the commented template written by GenerateDefault.
const starterConfig = `# Tollgate configuration
enabled: true

default-language: en_us
languages-dir: ./languages

economy:
  round-to-decimals: 2
  currency-symbol: "$"
  # Deny chargeable actions when no ledger is hooked instead of letting
  # them through for free.
  require-ledger: false

admin:
  port: 6880
  # Bearer token required by POST /api/reload. Empty leaves it open.
  reload-token: ""
  cors: false
  log-level: info

storage:
  path: ./tollgate.db
  # Uncomment to self-host balances instead of bridging a host economy.
  # ledger-path: ./balances.db

types:
  TELEPORT:
    enabled: true
    charge:
      mode: FIXED   # total cost = fixed x ceil(distance), min 1x
      fixed: 10
    overrides:
      from-permission: true
      pattern: 'tollgate\.{type}\.cost\.(\d+(?:\.\d+)?)'
  OPEN:
    enabled: true
    charge:
      mode: FIXED
      fixed: 50
    overrides:
      from-permission: true
  AUTOLOOT:
    enabled: true
    require-permission: true
    permission: tollgate.autoloot
    charge:
      mode: PERCENT_BALANCE
      percent: 1.5
  BLOCK_BREAK:
    enabled: false
    charge:
      mode: FIXED
      fixed: 5
`

// GenerateDefault writes the commented starter config to path.
func GenerateDefault(path string) error {
	return os.WriteFile(path, []byte(starterConfig), 0o644)
}

// Loader reads the config file and holds the current parsed snapshot.
// It is safe for concurrent use; Reload re-reads the same path.
type Loader struct {
	mu   sync.RWMutex
	cfg  *Config
	path string
}

// NewLoader creates a Loader holding DefaultConfig until Load is called.
func NewLoader() *Loader {
	return &Loader{cfg: DefaultConfig()}
}

// Load reads and parses the config file at path. Values omitted from the
// file keep their defaults. The path is remembered for Reload.
func (l *Loader) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.path = path
	l.mu.Unlock()
	return nil
}

// Reload re-reads the config from the path given to the last Load call.
// Calling Reload before Load is a no-op.
func (l *Loader) Reload() error {
	l.mu.RLock()
	path := l.path
	l.mu.RUnlock()

	if path == "" {
		return nil
	}
	return l.Load(path)
}

// Get returns the current config snapshot.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Path returns the config file path from the last successful Load.
func (l *Loader) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}
