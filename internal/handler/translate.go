// Package handler contains HTTP handlers for the FluentBridge API.
//
// This file implements the translation endpoint. Character consumption is
// gated by the quota admission middleware before the request reaches the
// handler, and recorded against the user's counter after the provider
// reports how many characters it actually processed.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/metrics"
	"github.com/mwilcek/fluentbridge/internal/service"
	"github.com/mwilcek/fluentbridge/internal/translate"
)

// maxTranslateBodyBytes caps translation request bodies. Chat messages are
// short; anything past this is rejected before it reaches the provider.
const maxTranslateBodyBytes = 1 << 20 // 1 MiB

// =============================================================================
// Request / Response Types
// =============================================================================

// TranslateRequest is the JSON body for POST /api/translate.
type TranslateRequest struct {
	Text   string `json:"text"`   // Text to translate
	Source string `json:"source"` // BCP 47 source language tag (e.g. "en")
	Target string `json:"target"` // BCP 47 target language tag (e.g. "es")
}

// TranslateResponse is the JSON response for a successful translation.
type TranslateResponse struct {
	TranslatedText string              `json:"translatedText"`
	CharsProcessed int64               `json:"charsProcessed"`
	Source         string              `json:"source"`
	Target         string              `json:"target"`
	Quota          *domain.QuotaStatus `json:"quota,omitempty"` // Pre-flight headroom, when available
}

// =============================================================================
// Handler Definition
// =============================================================================

// TranslateHandler serves translation requests.
type TranslateHandler struct {
	provider translate.Provider
	quota    service.QuotaService
	logger   *slog.Logger
}

// NewTranslateHandler creates a new TranslateHandler.
func NewTranslateHandler(provider translate.Provider, quota service.QuotaService, logger *slog.Logger) *TranslateHandler {
	return &TranslateHandler{
		provider: provider,
		quota:    quota,
		logger:   logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers translation routes with the provided mux.
//
// The admissionGate middleware performs the pre-flight quota check using
// TranslateAmount to size the request.
//
// Routes:
// - POST /api/translate -> Translate
func (h *TranslateHandler) RegisterRoutes(mux *http.ServeMux, requireUser, admissionGate func(http.Handler) http.Handler) {
	mux.Handle("POST /api/translate", requireUser(admissionGate(http.HandlerFunc(h.Translate))))
}

// =============================================================================
// POST /api/translate - Translate Text
// =============================================================================

// Translate validates the request, invokes the translation provider, and
// records the characters actually processed against the user's quota.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTranslateBodyBytes)

	var req TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.TranslationsServed.WithLabelValues("invalid").Inc()
		ErrorResponse(w, r, h.logger, domain.Invalid("TranslateHandler.Translate", "Request body must be valid JSON"))
		return
	}

	if req.Text == "" {
		metrics.TranslationsServed.WithLabelValues("invalid").Inc()
		ErrorResponse(w, r, h.logger, domain.Invalid("TranslateHandler.Translate", "Text is required"))
		return
	}

	source, err := language.Parse(req.Source)
	if err != nil {
		metrics.TranslationsServed.WithLabelValues("invalid").Inc()
		ErrorResponse(w, r, h.logger, domain.Invalid("TranslateHandler.Translate", "Source must be a valid BCP 47 language tag"))
		return
	}

	target, err := language.Parse(req.Target)
	if err != nil {
		metrics.TranslationsServed.WithLabelValues("invalid").Inc()
		ErrorResponse(w, r, h.logger, domain.Invalid("TranslateHandler.Translate", "Target must be a valid BCP 47 language tag"))
		return
	}

	if source == target {
		metrics.TranslationsServed.WithLabelValues("invalid").Inc()
		ErrorResponse(w, r, h.logger, domain.Invalid("TranslateHandler.Translate", "Source and target languages must differ"))
		return
	}

	result, err := h.provider.Translate(r.Context(), translate.Request{
		Text:   req.Text,
		Source: source,
		Target: target,
		UserID: userID,
	})
	if err != nil {
		metrics.TranslationsServed.WithLabelValues("provider_error").Inc()
		switch {
		case errors.Is(err, translate.ErrUnsupportedPair):
			ErrorResponse(w, r, h.logger, domain.Invalid("TranslateHandler.Translate", "This language pair is not supported"))
		case errors.Is(err, translate.ErrProviderUnavailable):
			ErrorResponse(w, r, h.logger, domain.Unavailable(err, "TranslateHandler.Translate", "Translation service is temporarily unavailable"))
		default:
			ErrorResponse(w, r, h.logger, domain.Internal(err, "TranslateHandler.Translate", "Translation failed"))
		}
		return
	}

	// Bill the characters the provider actually processed, not the
	// estimate the admission gate used.
	if err := h.quota.Record(r.Context(), userID, domain.ActionTranslation, int64(result.CharsProcessed)); err != nil {
		h.logger.Error("failed to record translation usage",
			"user_id", userID,
			"chars", result.CharsProcessed,
			"error", err,
		)
	}

	metrics.TranslationsServed.WithLabelValues("ok").Inc()

	resp := TranslateResponse{
		TranslatedText: result.TranslatedText,
		CharsProcessed: int64(result.CharsProcessed),
		Source:         source.String(),
		Target:         target.String(),
	}
	if status, ok := QuotaStatusFromContext(r.Context()); ok {
		resp.Quota = &status
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Admission Sizing
// =============================================================================

// TranslateAmount sizes a translation request for the quota admission gate
// by peeking at the JSON body and counting the runes in the text field. The
// body is restored so the handler can decode it again. Unreadable or
// malformed bodies size to 1 and are rejected properly by the handler.
func TranslateAmount(r *http.Request) int64 {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTranslateBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return 1
	}

	var req TranslateRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Text == "" {
		return 1
	}
	return int64(utf8.RuneCountInString(req.Text))
}
