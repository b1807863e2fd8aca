// Package domain contains core business types and interfaces.
//
// This file defines quota types: the actions that consume quota, the
// per-user usage counters, and the status object the engine produces.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuotaAction identifies the category of resource consumption being
// checked or recorded.
type QuotaAction string

const (
	ActionTranslation QuotaAction = "translation"
	ActionCall        QuotaAction = "call"
	ActionStorage     QuotaAction = "storage"
)

// Counter names a usage counter column in the store.
type Counter string

const (
	CounterTranslationChars Counter = "translation_chars_count"
	CounterCallMinutes      Counter = "call_minutes_count"
	CounterStorageBytes     Counter = "storage_used_bytes"
)

// WarningThresholdPercent is the usage percentage at which a check
// enters the warning zone (non-blocking advisory state).
const WarningThresholdPercent = 80.0

// UserUsage holds the current counters for one user within the active
// billing period. Rows are created at user provisioning time and only
// ever mutated through the store's atomic increment.
type UserUsage struct {
	UserID           uuid.UUID
	TranslationChars int64
	CallMinutes      int64
	StorageBytes     int64
	LastResetDate    time.Time
}

// SubscriptionStatus is the lifecycle state of a subscription row.
// Only active subscriptions are honored by the quota engine.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusTrialing SubscriptionStatus = "trialing"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
	SubStatusUnpaid   SubscriptionStatus = "unpaid"
)

// Subscription is a user's plan assignment.
type Subscription struct {
	UserID uuid.UUID
	Tier   PlanTier
	Status SubscriptionStatus
}

// QuotaStatus is the outcome of a quota check. It is computed fresh per
// check and never persisted.
type QuotaStatus struct {
	Allowed       bool    `json:"allowed"`
	Remaining     int64   `json:"remaining"`
	UsagePercent  float64 `json:"usagePercent"`
	IsWarningZone bool    `json:"isWarningZone"`
}

// actionMeter pairs a counter with accessors selecting the current
// value and limit for one action. A closed lookup table keeps action
// dispatch from growing into a conditional chain as actions are added.
type actionMeter struct {
	counter Counter
	current func(UserUsage) int64
	limit   func(PlanLimits) int64
}

var actionMeters = map[QuotaAction]actionMeter{
	ActionTranslation: {
		counter: CounterTranslationChars,
		current: func(u UserUsage) int64 { return u.TranslationChars },
		limit:   func(l PlanLimits) int64 { return l.TranslationChars },
	},
	ActionCall: {
		counter: CounterCallMinutes,
		current: func(u UserUsage) int64 { return u.CallMinutes },
		limit:   func(l PlanLimits) int64 { return l.CallMinutes },
	},
	ActionStorage: {
		counter: CounterStorageBytes,
		current: func(u UserUsage) int64 { return u.StorageBytes },
		limit:   func(l PlanLimits) int64 { return l.StorageBytes },
	},
}

// MeterFor resolves the counter/limit pair for an action. An unmapped
// action is a programming error at the call site.
func MeterFor(action QuotaAction) (counter Counter, current func(UserUsage) int64, limit func(PlanLimits) int64, err error) {
	m, ok := actionMeters[action]
	if !ok {
		return "", nil, nil, Errorf(EINVALID, "quota.meter_for", "unsupported quota action %q", action)
	}
	return m.counter, m.current, m.limit, nil
}

// UsageMetricStatus classifies one metric for the usage dashboard.
type UsageMetricStatus string

const (
	UsageNormal    UsageMetricStatus = "normal"
	UsageWarning   UsageMetricStatus = "warning"
	UsageExhausted UsageMetricStatus = "exhausted"
)

// UsageMetric is a single used/limit pair for the usage summary.
type UsageMetric struct {
	Used       int64             `json:"used"`
	Limit      int64             `json:"limit"`
	Percentage float64           `json:"percentage"`
	Status     UsageMetricStatus `json:"status"`
	Unit       string            `json:"unit"`
}

// UsageSummary aggregates all three metrics for one user.
type UsageSummary struct {
	Translation UsageMetric       `json:"translation"`
	Calls       UsageMetric       `json:"calls"`
	Storage     UsageMetric       `json:"storage"`
	Overall     UsageMetricStatus `json:"overallStatus"`
	Tier        PlanTier          `json:"tier"`
}
