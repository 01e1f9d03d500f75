// Package api exposes the admin HTTP surface: health, config reload,
// the live cost table, recorded billing decisions, and a WebSocket feed
// of decisions as they happen.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tollgate/tollgate/internal/audit"
	"github.com/tollgate/tollgate/internal/billing"
	"github.com/tollgate/tollgate/internal/config"
	"github.com/tollgate/tollgate/internal/i18n"
	"github.com/tollgate/tollgate/internal/placeholder"
	"github.com/tollgate/tollgate/internal/pricing"
)

// Server is the admin API server.
type Server struct {
	config      config.AdminConfig
	loader      *config.Loader
	runtime     *pricing.Runtime
	coordinator *billing.Coordinator
	catalog     *i18n.Catalog
	store       audit.Store
	expander    *placeholder.Expander
	reload      func() error
	wsHub       *WebSocketHub
	mux         *http.ServeMux
	httpServer  *http.Server
	logger      *slog.Logger
}

// NewServer creates the admin API server. reload is invoked by the
// reload endpoint and must re-read the config and republish the ruleset.
func NewServer(
	cfg config.AdminConfig,
	loader *config.Loader,
	runtime *pricing.Runtime,
	coordinator *billing.Coordinator,
	catalog *i18n.Catalog,
	store audit.Store,
	expander *placeholder.Expander,
	reload func() error,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:      cfg,
		loader:      loader,
		runtime:     runtime,
		coordinator: coordinator,
		catalog:     catalog,
		store:       store,
		expander:    expander,
		reload:      reload,
		wsHub:       NewWebSocketHub(logger, cfg.CORS),
		mux:         http.NewServeMux(),
		logger:      logger.With("component", "api.Server"),
	}

	s.registerRoutes()
	return s
}

// tokenRequired wraps a handler with bearer-token authentication. With no
// reload token configured the handler is returned unwrapped.
func (s *Server) tokenRequired(next http.HandlerFunc) http.HandlerFunc {
	if s.config.ReloadToken == "" {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}
		secret := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.ReloadToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}

func (s *Server) registerRoutes() {
	// System — health is always public
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Config
	s.mux.HandleFunc("POST /api/reload", s.tokenRequired(s.handleReload))
	s.mux.HandleFunc("GET /api/costs", s.handleCosts)
	s.mux.HandleFunc("GET /api/placeholders/{param}", s.handlePlaceholder)

	// Billing
	s.mux.HandleFunc("POST /api/charge", s.handleCharge)
	s.mux.HandleFunc("POST /api/precheck", s.handlePrecheck)

	// Decisions
	s.mux.HandleFunc("GET /api/decisions", s.handleListDecisions)

	// WebSocket
	s.mux.HandleFunc("GET /api/ws/decisions", s.wsHub.HandleWebSocket)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	if s.config.CORS {
		return corsMiddleware(s.mux)
	}
	return s.mux
}

// Start starts the API server on the given address.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("admin API listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Hub returns the WebSocket hub so it can be registered as a decision
// sink on the billing coordinator.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// corsMiddleware adds CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// APIAddr makes a listen address from a port.
func APIAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
