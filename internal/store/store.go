// Package store provides access to per-user usage counters and
// subscription tiers.
//
// This package is the only component permitted to read or mutate usage
// rows. All mutation goes through Increment, which every backend
// implements as a single store-evaluated read-modify-write so that
// concurrent increments compose additively with no lost updates.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
)

// UsageStore is the persistence boundary of the quota engine.
//
// Implementations:
// - Postgres: primary backend, counters in a user_usage table
// - Redis: counters in a per-user hash
// - Memory: in-process map for tests and local development
//
// Every method carries a bounded timeout; a timed-out call surfaces as
// an EUNAVAILABLE-coded error, which callers treat as fail-closed.
type UsageStore interface {
	// UsageAndTier loads the user's current counters and effective tier.
	// The tier defaults to Free when no active subscription exists.
	// Returns an ENOTFOUND-coded error if the user has no usage row.
	UsageAndTier(ctx context.Context, userID uuid.UUID) (domain.UserUsage, domain.PlanTier, error)

	// Increment atomically adds amount to one counter. The addition is
	// evaluated by the store itself, never read-then-written from here.
	Increment(ctx context.Context, userID uuid.UUID, counter domain.Counter, amount int64) error

	// ResetPeriod zeroes all counters and stamps the reset date in a
	// single statement, so a rollover cannot interleave with a
	// concurrent increment to lose an update.
	ResetPeriod(ctx context.Context, userID uuid.UUID) error
}

// PeriodResetter rolls expired billing periods over in bulk. The reset
// scheduler calls this on a fixed cadence; each backend implements it
// with the same lost-update guarantees as ResetPeriod.
type PeriodResetter interface {
	// ResetExpired zeroes the counters of every user whose last reset
	// predates the cutoff and stamps their new period start. Returns
	// the number of users reset.
	ResetExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenVerifier resolves an API token digest to a user identity.
type TokenVerifier interface {
	// UserIDForToken returns the user owning the token with the given
	// hex-encoded SHA-256 digest, or an EUNAUTHORIZED-coded error.
	UserIDForToken(ctx context.Context, digest string) (uuid.UUID, error)
}
