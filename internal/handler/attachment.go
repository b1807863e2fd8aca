// Package handler contains HTTP handlers for the FluentBridge API.
//
// This file implements the chat attachment lifecycle: upload, download,
// and delete. Storage consumption is gated by the quota admission
// middleware using the declared request size, then recorded against the
// user's counter with the bytes actually written.
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/metrics"
	"github.com/mwilcek/fluentbridge/internal/service"
	"github.com/mwilcek/fluentbridge/internal/storage"
)

const (
	// maxAttachmentBytes caps a single attachment upload.
	maxAttachmentBytes = 50 << 20 // 50 MiB

	// multipartMemoryBytes is the in-memory buffer for multipart parsing;
	// larger files spill to temp files.
	multipartMemoryBytes = 32 << 20 // 32 MiB

	// attachmentURLTTL is how long presigned attachment URLs stay valid.
	attachmentURLTTL = 24 * time.Hour
)

// =============================================================================
// Response Types
// =============================================================================

// UploadResponse is the JSON response for a successful attachment upload.
type UploadResponse struct {
	Key         string              `json:"key"`
	URL         string              `json:"url"`
	Size        int64               `json:"size"`
	ContentType string              `json:"contentType"`
	Quota       *domain.QuotaStatus `json:"quota,omitempty"` // Pre-flight headroom, when available
}

// =============================================================================
// Handler Definition
// =============================================================================

// AttachmentHandler serves chat attachment uploads, downloads, and
// deletes.
type AttachmentHandler struct {
	store  storage.Storage
	quota  service.QuotaService
	logger *slog.Logger
}

// NewAttachmentHandler creates a new AttachmentHandler.
func NewAttachmentHandler(store storage.Storage, quota service.QuotaService, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		store:  store,
		quota:  quota,
		logger: logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers attachment routes with the provided mux.
//
// The admissionGate middleware performs the pre-flight quota check on
// uploads using UploadAmount to size the request. Downloads and deletes
// consume no quota and take only authentication.
//
// Routes:
// - POST   /api/files          -> Upload
// - GET    /api/files/{key...} -> Download
// - DELETE /api/files/{key...} -> Delete
func (h *AttachmentHandler) RegisterRoutes(mux *http.ServeMux, requireUser, admissionGate func(http.Handler) http.Handler) {
	mux.Handle("POST /api/files", requireUser(admissionGate(http.HandlerFunc(h.Upload))))
	mux.Handle("GET /api/files/{key...}", requireUser(http.HandlerFunc(h.Download)))
	mux.Handle("DELETE /api/files/{key...}", requireUser(http.HandlerFunc(h.Delete)))
}

// =============================================================================
// POST /api/files - Upload Attachment
// =============================================================================

// Upload stores a multipart file as a chat attachment and records the
// stored bytes against the user's storage quota.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes+multipartMemoryBytes)

	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "Request must be multipart/form-data with a file field"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "Missing file field"))
		return
	}
	defer file.Close()

	if header.Size > maxAttachmentBytes {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "File exceeds the maximum attachment size"))
		return
	}

	contentType := storage.DetectContentType(header.Header.Get("Content-Type"), header.Filename, nil)
	if !storage.IsAllowedAttachmentType(contentType) {
		ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "This file type is not supported"))
		return
	}

	// MediaRecorder blobs arrive extension-less; derive one from the
	// MIME type so stored keys keep a usable extension. Voice notes get
	// their own key prefix.
	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = storage.ExtensionForContentType(contentType)
	}
	var key string
	if storage.IsAudio(contentType) {
		key = storage.VoiceNoteKey(userID, ext)
	} else {
		key = storage.AttachmentKey(userID, ext)
	}

	counted := &countingReader{r: file}

	err = h.store.Put(r.Context(), key, counted, storage.PutOptions{
		ContentType: contentType,
		MaxSize:     maxAttachmentBytes,
	})
	if err != nil {
		if storage.IsTooLarge(err) {
			ErrorResponse(w, r, h.logger, domain.Invalid("AttachmentHandler.Upload", "File exceeds the maximum attachment size"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, "AttachmentHandler.Upload", "Failed to store attachment"))
		return
	}

	// Bill the bytes actually written, not the declared request size the
	// admission gate used.
	if err := h.quota.Record(r.Context(), userID, domain.ActionStorage, counted.n); err != nil {
		h.logger.Error("failed to record storage usage",
			"user_id", userID,
			"bytes", counted.n,
			"key", key,
			"error", err,
		)
	}

	metrics.AttachmentsStored.Inc()
	metrics.AttachmentBytesStored.Add(float64(counted.n))

	url, err := h.store.URL(r.Context(), key, attachmentURLTTL)
	if err != nil {
		h.logger.Warn("failed to generate attachment URL", "key", key, "error", err)
	}

	resp := UploadResponse{
		Key:         key,
		URL:         url,
		Size:        counted.n,
		ContentType: contentType,
	}
	if status, ok := QuotaStatusFromContext(r.Context()); ok {
		resp.Quota = &status
	}

	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// GET /api/files/{key...} - Download Attachment
// =============================================================================

// Download streams one of the user's attachments. Other users'
// attachments read as not found.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	key, ok := ownedAttachmentKey(r, userID)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	body, info, err := h.store.Get(r.Context(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		ErrorResponse(w, r, h.logger, domain.Internal(err, "AttachmentHandler.Download", "Failed to read attachment"))
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		// The response is underway; all we can do is log.
		h.logger.Warn("attachment download interrupted", "key", key, "error", err)
	}
}

// =============================================================================
// DELETE /api/files/{key...} - Delete Attachment
// =============================================================================

// Delete removes one of the user's attachments. The storage counter
// meters bytes uploaded within the period, so deleting does not credit
// it back.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserIDFromRequest(r)
	if userID == uuid.Nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	key, ok := ownedAttachmentKey(r, userID)
	if !ok {
		NotFoundResponse(w, r, h.logger)
		return
	}

	// Blob deletes are idempotent, so check existence first to give the
	// client a real 404 for unknown keys.
	exists, err := h.store.Exists(r.Context(), key)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "AttachmentHandler.Delete", "Failed to check attachment"))
		return
	}
	if !exists {
		NotFoundResponse(w, r, h.logger)
		return
	}

	if err := h.store.Delete(r.Context(), key); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "AttachmentHandler.Delete", "Failed to delete attachment"))
		return
	}

	h.logger.Info("attachment deleted", "user_id", userID, "key", key)
	w.WriteHeader(http.StatusNoContent)
}

// ownedAttachmentKey resolves the {key...} path value and enforces the
// per-user key prefix, so users can only reach their own attachments.
func ownedAttachmentKey(r *http.Request, userID uuid.UUID) (string, bool) {
	key := r.PathValue("key")
	if !strings.HasPrefix(key, "attachments/"+userID.String()+"/") {
		return "", false
	}
	return key, true
}

// =============================================================================
// Admission Sizing
// =============================================================================

// UploadAmount sizes an upload request for the quota admission gate using
// the declared Content-Length. Chunked requests with no declared length
// size to 1; the post-upload Record call books the true byte count.
func UploadAmount(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	return 1
}

// countingReader counts bytes as they pass through to the storage backend.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
