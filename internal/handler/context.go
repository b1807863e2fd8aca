package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mwilcek/fluentbridge/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const quotaStatusContextKey contextKey = "quota_status"

// WithQuotaStatus attaches a pre-flight quota status to the context.
// Called by the admission gate so handlers can report headroom
// alongside their result.
func WithQuotaStatus(ctx context.Context, status domain.QuotaStatus) context.Context {
	return context.WithValue(ctx, quotaStatusContextKey, status)
}

// QuotaStatusFromContext retrieves the quota status attached by the
// admission gate.
func QuotaStatusFromContext(ctx context.Context) (domain.QuotaStatus, bool) {
	status, ok := ctx.Value(quotaStatusContextKey).(domain.QuotaStatus)
	return status, ok
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
