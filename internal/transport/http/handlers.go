package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"compass/internal/audit"
	"compass/internal/domain"
	"compass/internal/verification"
)

// InboundHandler is the pipeline entrypoint. Satisfied by
// *orchestrator.Service.
type InboundHandler interface {
	HandleInbound(ctx context.Context, ev domain.InboundEvent) (domain.OutboundDecision, error)
}

type Handler struct {
	pipeline InboundHandler
	verifier *verification.Service
	audit    *audit.Publisher
	logger   *slog.Logger
}

func NewHandler(pipeline InboundHandler, verifier *verification.Service, auditPub *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{pipeline: pipeline, verifier: verifier, audit: auditPub, logger: logger}
}

type inboundRequest struct {
	EventID    string    `json:"event_id"`
	Handle     string    `json:"handle"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

type decisionResponse struct {
	Decision string `json:"decision"`
	Text     string `json:"text,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	if req.EventID == "" || req.Handle == "" {
		writeError(w, http.StatusBadRequest, "event_id and handle are required")
		return
	}

	decision, err := h.pipeline.HandleInbound(r.Context(), domain.InboundEvent{
		EventID:    req.EventID,
		Handle:     req.Handle,
		Text:       req.Text,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		// The sender retries on 5xx; the idempotency claim was released.
		writeError(w, http.StatusInternalServerError, "event not processed")
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{
		Decision: string(decision.Kind),
		Text:     decision.Text,
		Reason:   string(decision.Reason),
	})
}

type callbackRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleVerificationCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	if err := h.verifier.HandleCallback(r.Context(), req.Token); err != nil {
		h.logger.WarnContext(r.Context(), "verification callback rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "callback rejected")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	events, err := h.audit.List(r.Context(), handle, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
