package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/tollgate/tollgate/internal/audit"
	"github.com/tollgate/tollgate/internal/billing"
	"github.com/tollgate/tollgate/internal/capability"
	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/i18n"
	"github.com/tollgate/tollgate/internal/ledger"
	"github.com/tollgate/tollgate/internal/override"
	"github.com/tollgate/tollgate/internal/placeholder"
	"github.com/tollgate/tollgate/internal/pricing"
)

type testEnv struct {
	server  *Server
	store   *audit.MemoryStore
	reloads int
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Economy.CurrencySymbol = "$"
	cfg.Types = map[string]config.TypeConfig{
		"TELEPORT": {Charge: config.ChargeConfig{Mode: "FIXED", Fixed: 10}},
		"OPEN":     {Charge: config.ChargeConfig{Mode: "PERCENT_BALANCE", Percent: 5}},
	}

	runtime := pricing.NewRuntime(pricing.NewRuleset(cfg))
	store := audit.NewMemoryStore()

	ledg := ledger.NewMemoryLedger()
	ledg.Deposit("alice", decimal.NewFromInt(100))
	coordinator := billing.NewCoordinator(
		runtime,
		billing.NewCalculator(override.NewResolver(nil), nil),
		capability.StaticResolver{},
		ledg,
		"",
		nil,
	)
	catalog := i18n.NewCatalog("en_us", map[string]map[string]string{
		"en_us": {
			"tollgate.teleport.charged":      "Paid {currency}{amount} to teleport.",
			"tollgate.teleport.insufficient": "You need {currency}{amount} to teleport.",
		},
	})

	env := &testEnv{store: store}
	env.server = NewServer(
		config.AdminConfig{ReloadToken: token},
		config.NewLoader(),
		runtime,
		coordinator,
		catalog,
		store,
		placeholder.NewExpander(runtime),
		func() error { env.reloads++; return nil },
		nil,
	)
	return env
}

func doRequest(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, "")

	rec := doRequest(t, env.server, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health returned %d, want 200", rec.Code)
	}
}

func TestServer_ReloadRequiresToken(t *testing.T) {
	env := newTestEnv(t, "hunter2")

	rec := doRequest(t, env.server, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reload without token returned %d, want 401", rec.Code)
	}
	rec = doRequest(t, env.server, http.MethodPost, "/api/reload", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reload with bad token returned %d, want 401", rec.Code)
	}
	if env.reloads != 0 {
		t.Fatalf("reload ran %d times without valid token", env.reloads)
	}

	rec = doRequest(t, env.server, http.MethodPost, "/api/reload", "hunter2")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload with token returned %d, want 200", rec.Code)
	}
	if env.reloads != 1 {
		t.Errorf("reload ran %d times, want 1", env.reloads)
	}
}

func TestServer_ReloadOpenWithoutToken(t *testing.T) {
	env := newTestEnv(t, "")

	rec := doRequest(t, env.server, http.MethodPost, "/api/reload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reload returned %d, want 200", rec.Code)
	}
	if env.reloads != 1 {
		t.Errorf("reload ran %d times, want 1", env.reloads)
	}
}

func TestServer_Costs(t *testing.T) {
	env := newTestEnv(t, "")

	rec := doRequest(t, env.server, http.MethodGet, "/api/costs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("costs returned %d, want 200", rec.Code)
	}

	var body struct {
		EngineEnabled bool        `json:"engine_enabled"`
		Currency      string      `json:"currency"`
		Costs         []costEntry `json:"costs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode costs: %v", err)
	}
	if !body.EngineEnabled {
		t.Error("engine_enabled = false, want true")
	}
	if body.Currency != "$" {
		t.Errorf("currency = %q, want $", body.Currency)
	}
	if len(body.Costs) != 2 {
		t.Fatalf("got %d cost entries, want 2", len(body.Costs))
	}
	// Sorted by category: OPEN before TELEPORT.
	if body.Costs[0].Category != "OPEN" || body.Costs[1].Category != "TELEPORT" {
		t.Errorf("cost order = %q, %q", body.Costs[0].Category, body.Costs[1].Category)
	}
	if body.Costs[1].Fixed != "10" {
		t.Errorf("teleport fixed = %q, want 10", body.Costs[1].Fixed)
	}
}

func TestServer_Placeholder(t *testing.T) {
	env := newTestEnv(t, "")

	rec := doRequest(t, env.server, http.MethodGet, "/api/placeholders/teleport_cost", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("placeholder returned %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode placeholder: %v", err)
	}
	if body["value"] != "$10" {
		t.Errorf("value = %q, want $10", body["value"])
	}
}

func TestServer_Charge(t *testing.T) {
	env := newTestEnv(t, "")

	body := strings.NewReader(`{"principal":"alice","category":"teleport","locale":"en_us"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/charge", body)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("charge returned %d, want 200", rec.Code)
	}

	var resp struct {
		Decision billing.Decision `json:"decision"`
		Message  string           `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode charge response: %v", err)
	}
	if resp.Decision.Outcome != billing.OutcomeCharged {
		t.Fatalf("outcome = %q, want charged", resp.Decision.Outcome)
	}
	if !resp.Decision.Allowed {
		t.Error("charged decision not allowed")
	}
	if resp.Message != "Paid $10 to teleport." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestServer_ChargeRejectsEmptyPrincipal(t *testing.T) {
	env := newTestEnv(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/charge", strings.NewReader(`{"category":"teleport"}`))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("charge returned %d, want 400", rec.Code)
	}
}

func TestServer_ListDecisions(t *testing.T) {
	env := newTestEnv(t, "")

	for _, principal := range []string{"alice", "bob"} {
		_ = env.store.Insert(billing.Decision{
			ID:        ulid.Make().String(),
			Timestamp: time.Now().UTC(),
			Phase:     billing.PhaseCharge,
			Principal: principal,
			Category:  pricing.CategoryOpen,
			Cost:      decimal.NewFromInt(5),
			Outcome:   billing.OutcomeCharged,
			Allowed:   true,
		})
	}

	rec := doRequest(t, env.server, http.MethodGet, "/api/decisions?principal=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("decisions returned %d, want 200", rec.Code)
	}

	var body struct {
		Decisions []billing.Decision `json:"decisions"`
		Total     int64              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode decisions: %v", err)
	}
	if len(body.Decisions) != 1 {
		t.Fatalf("got %d decisions for alice, want 1", len(body.Decisions))
	}
	if body.Decisions[0].Principal != "alice" {
		t.Errorf("principal = %q, want alice", body.Decisions[0].Principal)
	}
	if body.Total != 2 {
		t.Errorf("total = %d, want 2", body.Total)
	}
}
