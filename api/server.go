/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/companies/*   Company management, balances, funds, transactions
  /api/payments/*    Send/schedule payments
  /api/requests/*    Payment request lifecycle
  /api/settlement/*  Manual settlement sweep
  /api/scenarios/*   Demo scenarios
  /metrics           Prometheus metrics

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Company routes
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.ListCompanies)
			r.Post("/", h.CreateCompany)
			r.Get("/{id}", h.GetCompany)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/transactions", h.GetTransactions)
			r.Get("/{id}/scheduled/due", h.GetDueScheduled)
			r.Post("/{id}/funds/add", h.AddFunds)
			r.Post("/{id}/funds/withdraw", h.WithdrawFunds)
			r.Get("/{id}/requests/incoming", h.ListIncomingRequests)
			r.Get("/{id}/requests/outgoing", h.ListOutgoingRequests)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Post("/send", h.SendPayment)
		})

		// Payment request routes
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.CreatePaymentRequest)
			r.Post("/{id}/accept", h.AcceptRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		// Settlement routes
		r.Route("/settlement", func(r chi.Router) {
			r.Post("/run", h.TriggerSettlement)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Landing page listing the API surface
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Vero Finance Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Vero Finance Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/companies">/api/companies</a> - List companies</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List demo scenarios</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`))
	})

	return r
}
