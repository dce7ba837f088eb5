/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/calculations/*   Compute and inspect allowances
  /api/rules/*          Repository rule definitions
  /api/chains/*         Per-country rule chains
  /api/countries        Built-in country rules
  /api/defaults         Seed default definitions

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/calculations", func(r chi.Router) {
			r.Get("/", h.ListCalculations)
			r.Post("/", h.Calculate)
			r.Get("/{id}", h.GetCalculation)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Get("/{country}", h.GetRule)
			r.Put("/{country}", h.SaveRule)
			r.Delete("/{country}", h.DeleteRule)
		})

		r.Route("/chains", func(r chi.Router) {
			r.Get("/", h.ListChains)
			r.Get("/{country}", h.GetChain)
			r.Put("/{country}", h.SaveChain)
		})

		r.Get("/countries", h.ListCountries)
		r.Post("/defaults", h.SeedDefaults)
	})

	return r
}
