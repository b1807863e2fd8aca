// Package handler contains HTTP handlers for the FluentBridge API.
//
// This file implements call session endpoints. A session is admitted only
// when the user has call minutes remaining, and is metered minute by
// minute until it ends or the quota runs out.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/service"
)

// =============================================================================
// Response Types
// =============================================================================

// CallResponse is the JSON representation of a call session.
type CallResponse struct {
	SessionID uuid.UUID           `json:"sessionId"`
	State     string              `json:"state"`
	StartedAt time.Time           `json:"startedAt"`
	Quota     *domain.QuotaStatus `json:"quota,omitempty"` // Pre-flight headroom, when available
}

// =============================================================================
// Handler Definition
// =============================================================================

// CallHandler serves call session requests.
type CallHandler struct {
	calls  *service.CallController
	logger *slog.Logger
}

// NewCallHandler creates a new CallHandler.
func NewCallHandler(calls *service.CallController, logger *slog.Logger) *CallHandler {
	return &CallHandler{
		calls:  calls,
		logger: logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers call session routes with the provided mux.
//
// Routes:
// - POST   /api/calls      -> Start
// - GET    /api/calls/{id} -> Show
// - DELETE /api/calls/{id} -> Hangup
func (h *CallHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/calls", requireUser(http.HandlerFunc(h.Start)))
	mux.Handle("GET /api/calls/{id}", requireUser(http.HandlerFunc(h.Show)))
	mux.Handle("DELETE /api/calls/{id}", requireUser(http.HandlerFunc(h.Hangup)))
}

// =============================================================================
// POST /api/calls - Start Call Session
// =============================================================================

// Start admits a new call session for the authenticated user. Admission is
// refused with 402 when no call minutes remain.
func (h *CallHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	session, err := h.calls.Start(r.Context(), userID, func(sessionID uuid.UUID, reason service.TerminateReason) {
		h.logger.Info("Call session force-terminated",
			"session_id", sessionID,
			"user_id", userID,
			"reason", reason,
		)
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, CallResponse{
		SessionID: session.ID,
		State:     string(session.State()),
		StartedAt: session.StartedAt,
	})
}

// =============================================================================
// GET /api/calls/{id} - Call Session Status
// =============================================================================

// Show reports the lifecycle state of one of the user's call sessions.
// Clients poll this to learn the session was terminated server-side when
// minutes ran out mid-call.
func (h *CallHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	session, ok := h.session(r, userID)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{
		SessionID: session.ID,
		State:     string(session.State()),
		StartedAt: session.StartedAt,
	})
}

// =============================================================================
// DELETE /api/calls/{id} - Hang Up
// =============================================================================

// Hangup ends one of the user's call sessions. It responds once metering
// has fully stopped.
func (h *CallHandler) Hangup(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	session, ok := h.session(r, userID)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	if err := h.calls.Hangup(session.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{
		SessionID: session.ID,
		State:     string(session.State()),
		StartedAt: session.StartedAt,
	})
}

// session resolves the {id} path value to one of the user's sessions.
// Sessions belonging to other users read as not found.
func (h *CallHandler) session(r *http.Request, userID uuid.UUID) (*service.CallSession, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return nil, false
	}
	session, ok := h.calls.Session(id)
	if !ok || session.UserID != userID {
		return nil, false
	}
	return session, true
}
