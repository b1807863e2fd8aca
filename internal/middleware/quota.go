package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/handler"
	"github.com/mwilcek/fluentbridge/internal/metrics"
	"github.com/mwilcek/fluentbridge/internal/service"
)

// =============================================================================
// Quota Guard
// =============================================================================

// AmountFunc computes the units a request intends to consume from the
// inbound request (character count, byte size). Return values below 1
// are treated as 1.
type AmountFunc func(r *http.Request) int64

// QuotaGuard gates resource-consuming endpoints on the quota engine.
//
// The pre-flight check is advisory: it rejects obviously exhausted
// requests early and never increments. The wrapped handler records
// actual consumption after it succeeds, so the amount booked reflects
// what was really consumed.
type QuotaGuard struct {
	quota  service.QuotaService
	logger *slog.Logger
}

// NewQuotaGuard creates a QuotaGuard.
func NewQuotaGuard(quota service.QuotaService, logger *slog.Logger) *QuotaGuard {
	return &QuotaGuard{
		quota:  quota,
		logger: logger,
	}
}

// Require returns middleware gating the wrapped handler on the given
// action. amount may be nil for actions that consume a single unit.
//
// Outcomes:
//   - exhausted: 402 with a structured payload the client can render as
//     an upgrade prompt, handler never runs, nothing is recorded
//   - engine failure: 503, fail closed — the handler must not run when
//     quota cannot be verified
//   - allowed: status attached to the request context; a warning header
//     is added when usage is at or past the warning threshold
func (g *QuotaGuard) Require(action domain.QuotaAction, amount AmountFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := auth.GetUserID(r.Context())

			amt := int64(1)
			if amount != nil {
				if v := amount(r); v > 1 {
					amt = v
				}
			}

			status, err := g.quota.Check(r.Context(), userID, action, amt)
			if err != nil {
				g.logger.Error("Quota verification failed",
					"user_id", userID,
					"action", action,
					"error", err,
				)
				metrics.QuotaGuardRejections.WithLabelValues(string(action), "verification_failure").Inc()
				writeGuardJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"error":   "Quota Verification Failure",
					"message": "Your usage could not be verified. Please try again.",
				})
				return
			}

			if !status.Allowed {
				g.logger.Warn("Quota guard blocked request",
					"user_id", userID,
					"action", action,
					"amount", amt,
					"remaining", status.Remaining,
				)
				metrics.QuotaGuardRejections.WithLabelValues(string(action), "quota_exceeded").Inc()
				writeGuardJSON(w, http.StatusPaymentRequired, map[string]interface{}{
					"error":   "Quota Exceeded",
					"message": fmt.Sprintf("You have reached your %s limit. Please upgrade your plan.", action),
					"status": map[string]interface{}{
						"remaining":    status.Remaining,
						"usagePercent": status.UsagePercent,
						"limitReached": true,
					},
				})
				return
			}

			if status.IsWarningZone {
				w.Header().Set("X-Quota-Warning", fmt.Sprintf("Usage at %.1f%%", status.UsagePercent))
			}

			next.ServeHTTP(w, r.WithContext(handler.WithQuotaStatus(r.Context(), status)))
		})
	}
}

func writeGuardJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
