package offer

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/", h.HandleRoot)
	r.Post("/start-offer", h.HandleStartOffer)
}
