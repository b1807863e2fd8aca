// Package handler contains HTTP handlers for the FluentBridge API.
//
// This file implements the usage summary endpoint that reports per-metric
// consumption against the authenticated user's plan limits.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/service"
)

// =============================================================================
// Handler Definition
// =============================================================================

// UsageHandler serves usage summary requests.
type UsageHandler struct {
	quota  service.QuotaService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(quota service.QuotaService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		quota:  quota,
		logger: logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers usage routes with the provided mux.
//
// Routes:
// - GET /api/usage -> Show (usage summary for the authenticated user)
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.Show)))
}

// =============================================================================
// GET /api/usage - Usage Summary
// =============================================================================

// Show returns the per-metric usage summary for the authenticated user:
// characters translated, call minutes used, and storage consumed, each
// with the plan limit, percentage, and a normal/warning/exhausted status.
func (h *UsageHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	summary, err := h.quota.Summary(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
