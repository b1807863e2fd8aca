// Package service contains the business logic layer.
//
// This file implements the quota engine: stateless policy evaluation
// combining a fresh usage snapshot with the plan catalog to produce an
// admission decision, plus the post-consumption usage recorder.
package service

import (
	"context"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/metrics"
	"github.com/mwilcek/fluentbridge/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService defines the quota engine operations.
//
// Check is read-only and advisory: between a passing check and the
// following Record, another concurrent request may also pass its own
// check. The atomic increment inside Record is the true enforcement
// point — an increment that pushes usage over the limit still lands,
// and the overage is caught by the next Check. This bounded burst
// overage is accepted instead of paying for distributed locking.
type QuotaService interface {
	// Check computes the admission decision for consuming amount units
	// of the given action. It never increments. Fails closed: a store
	// error propagates and is never treated as "allowed".
	Check(ctx context.Context, userID uuid.UUID, action domain.QuotaAction, amount int64) (domain.QuotaStatus, error)

	// Record books amount units against the user's counter. Call it
	// only after real consumption is confirmed, with the actually
	// consumed amount.
	Record(ctx context.Context, userID uuid.UUID, action domain.QuotaAction, amount int64) error

	// Summary returns the per-metric usage overview for a user.
	Summary(ctx context.Context, userID uuid.UUID) (*domain.UsageSummary, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	store  store.UsageStore
	logger *slog.Logger
}

// NewQuotaService creates a QuotaService backed by the given store.
func NewQuotaService(usageStore store.UsageStore, logger *slog.Logger) QuotaService {
	return &quotaService{
		store:  usageStore,
		logger: logger,
	}
}

// Check computes the admission decision for one request.
func (s *quotaService) Check(ctx context.Context, userID uuid.UUID, action domain.QuotaAction, amount int64) (domain.QuotaStatus, error) {
	const op = "quota.check"

	_, currentOf, limitOf, err := domain.MeterFor(action)
	if err != nil {
		return domain.QuotaStatus{}, err
	}

	usage, tier, err := s.store.UsageAndTier(ctx, userID)
	if err != nil {
		metrics.QuotaChecksTotal.WithLabelValues(string(action), "error").Inc()
		// Fail closed: no usage snapshot, no admission.
		return domain.QuotaStatus{}, err
	}

	limits := domain.LimitsFor(tier)
	current := currentOf(usage)
	limit := limitOf(limits)
	projected := current + amount

	status := domain.QuotaStatus{}
	if limit == domain.Unlimited {
		// Percent against the sentinel is meaningless; pin it to 0 and
		// admit unconditionally.
		status.Allowed = true
		status.Remaining = maxInt64(0, limit-projected)
	} else {
		status.UsagePercent = roundPercent(float64(projected) / float64(limit) * 100)
		status.Allowed = projected <= limit
		status.Remaining = maxInt64(0, limit-projected)
		status.IsWarningZone = status.UsagePercent >= domain.WarningThresholdPercent
	}

	outcome := "allowed"
	if !status.Allowed {
		outcome = "denied"
		s.logger.Info("Quota exceeded",
			"user_id", userID,
			"tier", tier,
			"action", action,
			"current", current,
			"amount", amount,
			"limit", limit,
		)
	}
	metrics.QuotaChecksTotal.WithLabelValues(string(action), outcome).Inc()

	return status, nil
}

// Record books confirmed consumption against the user's counter.
func (s *quotaService) Record(ctx context.Context, userID uuid.UUID, action domain.QuotaAction, amount int64) error {
	counter, _, _, err := domain.MeterFor(action)
	if err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}
	if err := s.store.Increment(ctx, userID, counter, amount); err != nil {
		return err
	}
	metrics.UsageUnitsRecorded.WithLabelValues(string(action)).Add(float64(amount))
	return nil
}

// Summary builds the usage dashboard view from current counters.
// Unlike Check, percentages here are over current usage, not a
// projected request.
func (s *quotaService) Summary(ctx context.Context, userID uuid.UUID) (*domain.UsageSummary, error) {
	usage, tier, err := s.store.UsageAndTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := domain.LimitsFor(tier)

	translation := buildMetric(usage.TranslationChars, limits.TranslationChars, "Chars")
	calls := buildMetric(usage.CallMinutes, limits.CallMinutes, "Mins")
	storage := buildMetric(usage.StorageBytes, limits.StorageBytes, "Bytes")

	overall := domain.UsageNormal
	for _, m := range []domain.UsageMetric{translation, calls, storage} {
		if m.Status == domain.UsageExhausted {
			overall = domain.UsageExhausted
			break
		}
		if m.Status == domain.UsageWarning {
			overall = domain.UsageWarning
		}
	}

	return &domain.UsageSummary{
		Translation: translation,
		Calls:       calls,
		Storage:     storage,
		Overall:     overall,
		Tier:        tier,
	}, nil
}

func buildMetric(used, limit int64, unit string) domain.UsageMetric {
	m := domain.UsageMetric{
		Used:   used,
		Limit:  limit,
		Status: domain.UsageNormal,
		Unit:   unit,
	}
	if limit == domain.Unlimited {
		return m
	}
	m.Percentage = roundPercent(float64(used) / float64(limit) * 100)
	switch {
	case m.Percentage >= 100:
		m.Status = domain.UsageExhausted
	case m.Percentage >= domain.WarningThresholdPercent:
		m.Status = domain.UsageWarning
	}
	return m
}

// roundPercent rounds to one decimal place.
func roundPercent(v float64) float64 {
	return math.Round(v*10) / 10
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
