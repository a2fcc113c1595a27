// Package httptransport is the thin HTTP boundary. Handlers translate wire
// payloads to domain calls and never embed policy.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public endpoints.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/v1/events/inbound", h.handleInbound)
	r.Post("/v1/verification/callback", h.handleVerificationCallback)
	r.Get("/v1/users/{handle}/audit", h.handleAuditTrail)

	return r
}
