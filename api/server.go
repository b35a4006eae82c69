/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*          Users, balances, ledger, deposits, withdrawals
  /api/plans            Active plan catalog
  /api/deposits/*       Deposit confirmation (admin)
  /api/withdrawals/*    Withdrawal approval (admin)
  /api/subscriptions/*  Subscription cancellation
  /api/admin/*          Plan management, balance adjustments, accrual trigger

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Admin routes are grouped so an auth middleware can be dropped in later.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/subscriptions", h.ListSubscriptions)
			r.Post("/{id}/purchases", h.Purchase)
			r.Get("/{id}/deposits", h.ListDeposits)
			r.Post("/{id}/deposits", h.CreateDeposit)
			r.Get("/{id}/withdrawals", h.ListWithdrawals)
			r.Post("/{id}/withdrawals", h.RequestWithdrawal)
		})

		// Plan catalog (active plans only)
		r.Get("/plans", h.ListPlans)

		// Deposit lifecycle routes
		r.Route("/deposits", func(r chi.Router) {
			r.Post("/{id}/confirm", h.ConfirmDeposit)
			r.Post("/{id}/reject", h.RejectDeposit)
		})

		// Withdrawal lifecycle routes
		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/{id}/approve", h.ApproveWithdrawal)
			r.Post("/{id}/reject", h.RejectWithdrawal)
		})

		// Subscription routes
		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/{id}/cancel", h.CancelSubscription)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/plans", h.ListAllPlans)
			r.Post("/plans", h.CreatePlan)
			r.Put("/plans/{id}", h.UpdatePlan)
			r.Post("/users/{id}/adjust", h.AdjustBalance)
			r.Post("/accrual/run", h.RunAccrual)
		})
	})

	return r
}
