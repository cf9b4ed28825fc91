/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend

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
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerRequester, headerAdmin},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Reservation routes
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.CreateReservation)
			r.Get("/", h.ListReservations)
			r.Get("/{id}", h.GetReservation)
			r.Put("/{id}", h.ModifyReservation)
			r.Delete("/{id}", h.CancelReservation)
		})

		// Fleet routes
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.SaveVehicle)
			r.Get("/{id}", h.GetVehicle)
			r.Put("/{id}", h.SaveVehicle)
			r.Delete("/{id}", h.DeleteVehicle)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/reservations", h.ListAllReservations)
			r.Post("/expire", h.ExpireNow)
			r.Post("/recompute-counters", h.RecomputeCounters)
		})
	})

	return r
}
