package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/internal/api"
	"github.com/tollgate/tollgate/internal/audit"
	"github.com/tollgate/tollgate/internal/billing"
	"github.com/tollgate/tollgate/internal/capability"
	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/i18n"
	"github.com/tollgate/tollgate/internal/ledger"
	"github.com/tollgate/tollgate/internal/override"
	"github.com/tollgate/tollgate/internal/placeholder"
	"github.com/tollgate/tollgate/internal/pricing"
	"github.com/tollgate/tollgate/internal/watch"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tollgate",
		Short: "Transactional billing engine for chargeable actions",
		Long:  "Tollgate resolves the price of an action, checks affordability, and\ncommits the withdrawal — or tells the caller exactly why it cannot.",
	}

	var configFile string
	var port int
	var devMode bool
	var token string

	// ─── start ───
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the billing engine and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(configFile, port, devMode)
		},
	}
	startCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: tollgate.yaml)")
	startCmd.Flags().IntVarP(&port, "port", "p", 0, "Override admin port (default: 6880)")
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Dev mode: verbose logs, CORS *")

	// ─── init ───
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate starter config and language files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}

	// ─── reload ───
	reloadCmd := &cobra.Command{
		Use:   "reload",
		Short: "Hot-reload pricing config on a running engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := resolvePort(port)
			req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("http://localhost:%d/api/reload", p), nil)
			if err != nil {
				return err
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to Tollgate: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode == http.StatusOK {
				fmt.Println("✓ Configuration reloaded")
			} else {
				fmt.Printf("✗ Reload failed (HTTP %d)\n", resp.StatusCode)
			}
			return nil
		},
	}
	reloadCmd.Flags().IntVarP(&port, "port", "p", 0, "Admin port (default: 6880)")
	reloadCmd.Flags().StringVar(&token, "token", "", "Reload bearer token")

	// ─── costs ───
	costsCmd := &cobra.Command{
		Use:   "costs",
		Short: "Show the live cost table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCosts(port)
		},
	}
	costsCmd.Flags().IntVarP(&port, "port", "p", 0, "Admin port (default: 6880)")

	// ─── decisions ───
	var principal, category string
	var limit int
	decisionsCmd := &cobra.Command{
		Use:   "decisions",
		Short: "List recent billing decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecisions(port, principal, category, limit)
		},
	}
	decisionsCmd.Flags().IntVarP(&port, "port", "p", 0, "Admin port (default: 6880)")
	decisionsCmd.Flags().StringVar(&principal, "principal", "", "Filter by principal")
	decisionsCmd.Flags().StringVar(&category, "category", "", "Filter by category")
	decisionsCmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows")

	// ─── simulate ───
	var balance float64
	var caps []string
	var distBlocks float64
	var locale string
	var precheck bool
	simulateCmd := &cobra.Command{
		Use:   "simulate [principal] [category]",
		Short: "Run one billing decision locally against the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(configFile, args[0], args[1], balance, caps, distBlocks, locale, precheck)
		},
	}
	simulateCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	simulateCmd.Flags().Float64Var(&balance, "balance", 100, "Starting balance for the principal")
	simulateCmd.Flags().StringArrayVar(&caps, "cap", nil, "Grant a capability (repeatable)")
	simulateCmd.Flags().Float64Var(&distBlocks, "distance", 0, "Teleport distance in blocks (0 = none)")
	simulateCmd.Flags().StringVar(&locale, "locale", "", "Message locale")
	simulateCmd.Flags().BoolVar(&precheck, "precheck", false, "Run the affordability gate only, no withdrawal")

	// ─── status ───
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show running status and decision counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(port)
		},
	}
	statusCmd.Flags().IntVarP(&port, "port", "p", 0, "Admin port (default: 6880)")

	// ─── version ───
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tollgate %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", buildDate)
		},
	}

	rootCmd.AddCommand(startCmd, initCmd, reloadCmd, costsCmd, decisionsCmd, simulateCmd, statusCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStart(configFile string, portOverride int, devMode bool) error {
	cfgLoader := config.NewLoader()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := cfgLoader.Load(configFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	cfg := cfgLoader.Get()

	if portOverride > 0 {
		cfg.Admin.Port = portOverride
	}
	if devMode {
		cfg.Admin.CORS = true
		cfg.Admin.LogLevel = "debug"
	}

	logger := newLogger(cfg.Admin.LogLevel)

	// Pricing ruleset, published for concurrent readers.
	runtime := pricing.NewRuntime(pricing.NewRuleset(cfg))

	// Locale message catalog.
	catalog, err := i18n.LoadCatalog(cfg.LanguagesDir, cfg.DefaultLanguage, logger)
	if err != nil {
		return fmt.Errorf("failed to load message catalogs: %w", err)
	}

	// Decision trail.
	store, err := audit.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open decision store: %w", err)
	}
	if err := store.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize decision store: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Optional self-hosted ledger. Without one the engine passes actions
	// through (or denies, when require-ledger is set).
	var ledg ledger.Ledger
	if cfg.Storage.LedgerPath != "" {
		sq, err := ledger.NewSQLiteLedger(cfg.Storage.LedgerPath)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		if err := sq.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize ledger: %w", err)
		}
		defer func() { _ = sq.Close() }()
		ledg = sq
	}

	calc := billing.NewCalculator(override.NewResolver(logger), logger)
	coordinator := billing.NewCoordinator(runtime, calc, capability.StaticResolver{}, ledg, "", logger)
	coordinator.AddSink(audit.NewRecorder(store, logger))

	reload := func() error {
		if err := cfgLoader.Reload(); err != nil {
			return err
		}
		runtime.Set(pricing.NewRuleset(cfgLoader.Get()))
		return catalog.Reload()
	}

	apiServer := api.NewServer(
		cfg.Admin, cfgLoader, runtime, coordinator, catalog,
		store, placeholder.NewExpander(runtime), reload, logger,
	)
	coordinator.AddSink(apiServer.Hub())

	// Hot-reload on config file changes.
	if configFile != "" {
		watcher, err := watch.NewWatcher(configFile, reload, logger)
		if err != nil {
			logger.Warn("failed to create config watcher", "error", err)
		} else if err := watcher.Start(); err != nil {
			logger.Warn("failed to start config watcher", "error", err)
		} else {
			defer func() { _ = watcher.Stop() }()
		}
	}

	fmt.Println()
	fmt.Printf("  Tollgate %s\n", version)
	fmt.Printf("  → Admin API:  http://localhost:%d/api\n", cfg.Admin.Port)
	fmt.Printf("  → Live feed:  ws://localhost:%d/api/ws/decisions\n", cfg.Admin.Port)
	fmt.Printf("  → Decisions:  %s\n", cfg.Storage.Path)
	if cfg.Storage.LedgerPath != "" {
		fmt.Printf("  → Ledger:     %s\n", cfg.Storage.LedgerPath)
	} else {
		fmt.Println("  → Ledger:     none (pass-through)")
	}
	fmt.Printf("  → Categories: %d configured\n", len(cfg.Types))
	fmt.Println()

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down...")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		_ = apiServer.Shutdown(shutCtx)
	}()

	if err := apiServer.Start(api.APIAddr(cfg.Admin.Port)); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin API error: %w", err)
	}
	return nil
}

// ─── Init ───

func runInit() error {
	configPath := "tollgate.yaml"
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("  ⚠ %s already exists (skipping)\n", configPath)
	} else {
		if err := config.GenerateDefault(configPath); err != nil {
			return err
		}
		fmt.Printf("  ✓ Generated %s\n", configPath)
	}

	if err := os.MkdirAll("languages", 0o755); err != nil {
		return fmt.Errorf("failed to create languages/: %w", err)
	}
	messagesPath := filepath.Join("languages", "en_us.yml")
	if _, err := os.Stat(messagesPath); err == nil {
		fmt.Printf("  ⚠ %s already exists (skipping)\n", messagesPath)
	} else {
		if err := i18n.GenerateDefault(messagesPath); err != nil {
			return err
		}
		fmt.Printf("  ✓ Generated %s\n", messagesPath)
	}

	fmt.Println()
	fmt.Println("  Next steps:")
	fmt.Println("    edit tollgate.yaml to set your prices")
	fmt.Println("    tollgate simulate alice teleport    # Preview a decision")
	fmt.Println("    tollgate start                      # Start the engine")
	return nil
}

// ─── Costs ───

func runCosts(port int) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/api/costs", p))
	if err != nil {
		return fmt.Errorf("failed to connect to Tollgate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		EngineEnabled bool   `json:"engine_enabled"`
		Currency      string `json:"currency"`
		Costs         []struct {
			Category           string `json:"category"`
			Enabled            bool   `json:"enabled"`
			Mode               string `json:"mode"`
			Fixed              string `json:"fixed"`
			Percent            string `json:"percent"`
			RequiresPermission bool   `json:"requires_permission"`
		} `json:"costs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.EngineEnabled {
		fmt.Println("⚠ Engine is disabled: every decision is a pass-through allow")
	}
	fmt.Printf("%-15s %-10s %-18s %-12s %-10s %s\n", "CATEGORY", "ENABLED", "MODE", "FIXED", "PERCENT", "GATED")
	fmt.Println(strings.Repeat("─", 75))
	for _, c := range result.Costs {
		fmt.Printf("%-15s %-10v %-18s %s%-11s %-10s %v\n",
			c.Category, c.Enabled, c.Mode, result.Currency, c.Fixed, c.Percent+"%", c.RequiresPermission)
	}
	return nil
}

// ─── Decisions ───

func runDecisions(port int, principal, category string, limit int) error {
	p := resolvePort(port)
	url := fmt.Sprintf("http://localhost:%d/api/decisions?limit=%d", p, limit)
	if principal != "" {
		url += "&principal=" + principal
	}
	if category != "" {
		url += "&category=" + strings.ToUpper(category)
	}

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to Tollgate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var result struct {
		Decisions []billing.Decision `json:"decisions"`
		Total     int64              `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Decisions) == 0 {
		fmt.Println("No decisions recorded.")
		return nil
	}

	fmt.Printf("%-26s %-9s %-15s %-13s %-10s %s\n", "TIMESTAMP", "PHASE", "PRINCIPAL", "CATEGORY", "COST", "OUTCOME")
	fmt.Println(strings.Repeat("─", 90))
	for _, d := range result.Decisions {
		fmt.Printf("%-26s %-9s %-15s %-13s %-10s %s\n",
			d.Timestamp.Format(time.RFC3339), d.Phase, truncate(d.Principal, 15),
			d.Category, d.Cost.String(), d.Outcome)
	}
	fmt.Printf("\n%d shown of %d total\n", len(result.Decisions), result.Total)
	return nil
}

// ─── Simulate ───

func runSimulate(configFile, principal, category string, balance float64, caps []string, distBlocks float64, locale string, precheck bool) error {
	cfgLoader := config.NewLoader()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := cfgLoader.Load(configFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := cfgLoader.Get()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	runtime := pricing.NewRuntime(pricing.NewRuleset(cfg))
	catalog, err := i18n.LoadCatalog(cfg.LanguagesDir, cfg.DefaultLanguage, logger)
	if err != nil {
		return fmt.Errorf("failed to load message catalogs: %w", err)
	}

	ledg := ledger.NewMemoryLedger()
	ledg.Deposit(principal, decimal.NewFromFloat(balance))

	calc := billing.NewCalculator(override.NewResolver(logger), logger)
	coordinator := billing.NewCoordinator(
		runtime, calc,
		capability.StaticResolver{principal: capability.NewSet(caps...)},
		ledg, "", logger,
	)

	cat := pricing.Category(strings.ToUpper(category))
	dist := billing.NoDistance
	if distBlocks > 0 {
		dist = billing.Distance{Blocks: distBlocks, Valid: true}
	}

	var d billing.Decision
	if precheck {
		d = coordinator.Precheck(principal, cat, dist)
	} else {
		d = coordinator.Charge(principal, cat, dist)
	}

	rs := runtime.Get()
	fmt.Printf("Decision:  %s\n", d.Outcome)
	fmt.Printf("Allowed:   %v\n", d.Allowed)
	fmt.Printf("Cost:      %s%s", rs.Currency(), rs.Format(d.Cost))
	if d.CostSource != "" {
		fmt.Printf("  (%s)", d.CostSource)
	}
	fmt.Println()
	if remaining, err := ledg.GetBalance(principal); err == nil {
		fmt.Printf("Balance:   %s%s\n", rs.Currency(), rs.Format(remaining))
	}
	if msg := d.RenderMessage(catalog, locale); msg != "" {
		fmt.Printf("Message:   %s\n", msg)
	}
	return nil
}

// ─── Status ───

func runStatus(port int) error {
	p := resolvePort(port)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/api/health", p))
	if err != nil {
		fmt.Printf("Tollgate is not running on port %d\n", p)
		return nil
	}
	_ = resp.Body.Close()
	fmt.Printf("✓ Tollgate running on port %d\n", p)

	resp, err = http.Get(fmt.Sprintf("http://localhost:%d/api/decisions?limit=1", p))
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	var result struct {
		Total int64 `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		fmt.Printf("  Decisions recorded: %d\n", result.Total)
	}
	return nil
}

// ─── Shared Helpers ───

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func findConfigFile() string {
	candidates := []string{
		"tollgate.yaml",
		"tollgate.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tollgate", "config.yaml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func resolvePort(port int) int {
	if port == 0 {
		return 6880
	}
	return port
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
