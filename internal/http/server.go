// Package http exposes the ledger and settlement API as JSON over HTTP.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saldo/internal/ledger"
	applog "saldo/internal/log"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
)

type Server struct {
	http.Server

	expenses    *services.ExpenseService
	settlements *services.SettlementService
	users       ledger.UserDirectory

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, expenses *services.ExpenseService, settlements *services.SettlementService, users ledger.UserDirectory) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		expenses:    expenses,
		settlements: settlements,
		users:       users,
		limiter:     ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/expenses", s.guard(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.guard(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.guard(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.guard(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.guard(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/balances", s.guard(s.handleLiveBalances))
	mux.HandleFunc("POST /api/settlements", s.guard(s.handleSettle))

	mux.HandleFunc("GET /api/users", s.guard(s.handleListUsers))
	mux.HandleFunc("POST /api/users", s.guard(s.handleCreateUser))

	// Handlers pull the request logger back out with applog.FromContext.
	reqlog := applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.Default().Handler(),
	})
	tracer := trace.NewMiddleware(extractClientIP)
	s.Server.Handler = tracer.Middleware(applog.Middleware(reqlog)(mux))

	return s
}

// guard applies security headers and rate limits mutating requests.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if !s.limiter.Allow(extractClientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks that the store answers before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.users.ListUsers(ctx); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "store not reachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
