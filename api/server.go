/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTES:
  /api/services          Department reference data
  /api/types-materiel    Equipment type reference data
  /api/attribution       Record handouts
  /api/restitution       Record returns
  /api/incidents         Record incident reports
  /api/historique        Filtered unified history
  /api/operation/{id}    Handover detail
  /api/incident/{id}     Incident detail
  /api/health            Liveness probe

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

// NewRouter creates a router with all routes configured. corsOrigins is the
// list of allowed browser origins, from configuration.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/services", h.ListServices)
		r.Get("/types-materiel", h.ListEquipmentTypes)

		r.Post("/attribution", h.CreateAttribution)
		r.Post("/restitution", h.CreateRestitution)
		r.Post("/incidents", h.CreateIncident)

		r.Get("/historique", h.GetHistory)
		r.Get("/operation/{id}", h.GetOperation)
		r.Get("/incident/{id}", h.GetIncident)
	})

	return r
}
