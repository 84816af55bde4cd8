package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/passport/internal/visitservice"
)

// NewRouter creates a chi router with all API routes mounted.
// limiter, if non-nil, guards the mutating routes.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *visitservice.Service, limiter *RateLimiter, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Visits.
	r.Get("/visits", h.ListVisits)
	r.Get("/visits/{row}", h.GetVisit)
	r.Get("/countries", h.Countries)
	r.Get("/stats", h.Stats)
	r.Get("/export", h.Export)
	r.Get("/search", h.Search)
	r.Get("/history", h.History)

	// Map.
	r.Get("/map", h.Map)
	r.Get("/map/locate", h.Locate)

	// Mutations are rate limited per client.
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Post("/visits", h.CreateVisit)
		r.Put("/visits/{row}", h.UpdateVisit)
		r.Delete("/visits/{row}", h.DeleteVisit)
		r.Post("/reload", h.Reload)
	})

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
