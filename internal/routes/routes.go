package routes

import (
	"net/http"

	"github.com/AnshRaj112/estatehub-backend/internal/handlers"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes registers the API. ipGate wraps the public form submissions.
func SetupRoutes(r chi.Router, h *handlers.Handler, ipGate func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	// Moderation checks used by the site's pages and forms
	r.Post("/api/blacklist/check", h.CheckBlacklist)
	r.Post("/api/blacklist/validate-content", h.ValidateContent)

	// Public property feed (bare array)
	r.Get("/api/properties/public", h.PublicProperties)

	// Contact form
	r.With(ipGate).Post("/api/inquiries", h.SubmitInquiry)

	// Admin routes (bearer auth checked in each handler)
	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/blacklist/cache/clear", h.ClearCache)
		r.Get("/blacklist/{type}", h.ListEntries)
		r.Post("/blacklist/{type}", h.CreateEntry)
		r.Get("/blacklist/{type}/{id}", h.GetEntry)
		r.Put("/blacklist/{type}/{id}", h.UpdateEntry)
		r.Delete("/blacklist/{type}/{id}", h.DeleteEntry)
		r.Get("/violations", h.GetViolations)
		r.Get("/inquiries", h.GetInquiries)
	})
}
