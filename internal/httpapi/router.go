package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires h's handlers onto a chi.Mux with the standard middleware
// stack.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/v1/health", h.HandleHealth)
	r.Post("/v1/messages", h.HandleWrite)
	r.Get("/v1/stream", h.HandleStream)
	r.Post("/v1/sync", h.HandleSync)
	r.Delete("/v1/segments", h.HandleRemoveSegments)

	return r
}
