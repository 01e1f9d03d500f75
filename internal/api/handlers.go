package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/tollgate/tollgate/internal/audit"
	"github.com/tollgate/tollgate/internal/billing"
	"github.com/tollgate/tollgate/internal/pricing"
)

// costEntry is one row of the cost table exposed by /api/costs.
type costEntry struct {
	Category           string `json:"category"`
	Enabled            bool   `json:"enabled"`
	Mode               string `json:"mode"`
	Fixed              string `json:"fixed"`
	Percent            string `json:"percent"`
	RequiresPermission bool   `json:"requires_permission"`
	Permission         string `json:"permission,omitempty"`
	OverrideScan       bool   `json:"override_scan"`
}

// --- Config ---

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload: "+err.Error())
		return
	}
	s.logger.Info("configuration reloaded via API", "remote", r.RemoteAddr)
	writeJSON(w, map[string]string{"status": "reloaded"})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	rs := s.runtime.Get()

	entries := make([]costEntry, 0, len(rs.Categories()))
	for _, cat := range rs.Categories() {
		rule := rs.Rule(cat)
		entries = append(entries, costEntry{
			Category:           string(cat),
			Enabled:            rule.Enabled,
			Mode:               string(rule.Mode),
			Fixed:              rs.Format(rule.Fixed),
			Percent:            rule.Percent.String(),
			RequiresPermission: rule.RequirePermission,
			Permission:         rule.Permission,
			OverrideScan:       rule.OverrideScan,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Category < entries[j].Category })

	writeJSON(w, map[string]interface{}{
		"engine_enabled": rs.EngineEnabled(),
		"currency":       rs.Currency(),
		"rounding":       rs.Rounding(),
		"costs":          entries,
	})
}

func (s *Server) handlePlaceholder(w http.ResponseWriter, r *http.Request) {
	param := r.PathValue("param")
	writeJSON(w, map[string]string{
		"param": param,
		"value": s.expander.Expand(param),
	})
}

// --- Billing ---

// chargeRequest is the body of /api/charge and /api/precheck. From and To
// are optional teleport endpoints; omitted or cross-domain endpoints fall
// back to the 1x distance multiplier.
type chargeRequest struct {
	Principal string            `json:"principal"`
	Category  string            `json:"category"`
	From      *billing.Location `json:"from,omitempty"`
	To        *billing.Location `json:"to,omitempty"`
	Locale    string            `json:"locale,omitempty"`
}

func (s *Server) handleCharge(w http.ResponseWriter, r *http.Request) {
	s.handleBilling(w, r, s.coordinator.Charge)
}

func (s *Server) handlePrecheck(w http.ResponseWriter, r *http.Request) {
	s.handleBilling(w, r, s.coordinator.Precheck)
}

func (s *Server) handleBilling(w http.ResponseWriter, r *http.Request, run func(string, pricing.Category, billing.Distance) billing.Decision) {
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Principal == "" || req.Category == "" {
		writeError(w, http.StatusBadRequest, "principal and category are required")
		return
	}

	cat := pricing.Category(strings.ToUpper(req.Category))
	d := run(req.Principal, cat, billing.DistanceBetween(req.From, req.To))

	writeJSON(w, map[string]interface{}{
		"decision": d,
		"message":  d.RenderMessage(s.catalog, req.Locale),
	})
}

// --- Decisions ---

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Principal: r.URL.Query().Get("principal"),
		Category:  r.URL.Query().Get("category"),
		Limit:     queryInt(r, "limit", 50),
	}

	decisions, err := s.store.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.store.Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]interface{}{
		"decisions": decisions,
		"total":     total,
	})
}

// --- System ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
