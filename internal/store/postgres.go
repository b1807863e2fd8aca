package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
)

// counterColumns whitelists the columns Increment may touch. Column
// names are interpolated into SQL, so only values from this map are
// ever used.
var counterColumns = map[domain.Counter]string{
	domain.CounterTranslationChars: "translation_chars_count",
	domain.CounterCallMinutes:      "call_minutes_count",
	domain.CounterStorageBytes:     "storage_used_bytes",
}

// PostgresStore implements UsageStore and TokenVerifier on PostgreSQL.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

var (
	_ UsageStore     = (*PostgresStore)(nil)
	_ PeriodResetter = (*PostgresStore)(nil)
	_ TokenVerifier  = (*PostgresStore)(nil)
)

// NewPostgresStore creates a PostgresStore. Every query is bounded by
// the given timeout.
func NewPostgresStore(db *sql.DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, timeout: timeout}
}

// UsageAndTier loads counters and the active subscription tier in one
// round trip. A user without an active subscription row is a Free user;
// a user without a usage row is not provisioned.
func (s *PostgresStore) UsageAndTier(ctx context.Context, userID uuid.UUID) (domain.UserUsage, domain.PlanTier, error) {
	const op = "store.usage_and_tier"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const q = `
		SELECT u.translation_chars_count, u.call_minutes_count, u.storage_used_bytes, u.last_reset_date,
		       COALESCE(s.tier::text, 'Free')
		FROM user_usage u
		LEFT JOIN subscriptions s ON s.user_id = u.user_id AND s.status = 'active'
		WHERE u.user_id = $1`

	usage := domain.UserUsage{UserID: userID}
	var tier string
	err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&usage.TranslationChars,
		&usage.CallMinutes,
		&usage.StorageBytes,
		&usage.LastResetDate,
		&tier,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.UserUsage{}, "", domain.NotProvisioned(op, userID.String())
	case err != nil:
		return domain.UserUsage{}, "", domain.Unavailable(err, op, "usage store query failed")
	}

	return usage, domain.PlanTier(tier), nil
}

// Increment adds amount to one counter with a single UPDATE. The
// addition happens inside the statement, so concurrent increments
// against the same row serialize at the store and never lose updates.
func (s *PostgresStore) Increment(ctx context.Context, userID uuid.UUID, counter domain.Counter, amount int64) error {
	const op = "store.increment"

	col, ok := counterColumns[counter]
	if !ok {
		return domain.Errorf(domain.EINVALID, op, "unknown counter %q", counter)
	}
	if amount < 0 {
		return domain.Errorf(domain.EINVALID, op, "negative increment %d", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := fmt.Sprintf(`UPDATE user_usage SET %s = %s + $1 WHERE user_id = $2`, col, col)
	res, err := s.db.ExecContext(ctx, q, amount, userID)
	if err != nil {
		return domain.Unavailable(err, op, "usage store update failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Unavailable(err, op, "usage store update failed")
	}
	if affected == 0 {
		return domain.NotProvisioned(op, userID.String())
	}
	return nil
}

// ResetPeriod zeroes all counters and stamps the reset date in one
// statement, serializing with concurrent increments at the row level.
func (s *PostgresStore) ResetPeriod(ctx context.Context, userID uuid.UUID) error {
	const op = "store.reset_period"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const q = `
		UPDATE user_usage
		SET translation_chars_count = 0,
		    call_minutes_count = 0,
		    storage_used_bytes = 0,
		    last_reset_date = now()
		WHERE user_id = $1`
	res, err := s.db.ExecContext(ctx, q, userID)
	if err != nil {
		return domain.Unavailable(err, op, "usage store reset failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Unavailable(err, op, "usage store reset failed")
	}
	if affected == 0 {
		return domain.NotProvisioned(op, userID.String())
	}
	return nil
}

// ResetExpired rolls over every user whose period lapsed before the
// cutoff in one statement.
func (s *PostgresStore) ResetExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "store.reset_expired"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	const q = `
		UPDATE user_usage
		SET translation_chars_count = 0,
		    call_minutes_count = 0,
		    storage_used_bytes = 0,
		    last_reset_date = now()
		WHERE last_reset_date < $1`
	res, err := s.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, domain.Unavailable(err, op, "usage store reset failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, domain.Unavailable(err, op, "usage store reset failed")
	}
	return affected, nil
}

// UserIDForToken resolves an API token digest to its owner.
func (s *PostgresStore) UserIDForToken(ctx context.Context, digest string) (uuid.UUID, error) {
	const op = "store.user_for_token"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var userID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM api_tokens WHERE token_digest = $1`, digest,
	).Scan(&userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return uuid.Nil, domain.Unauthorized(op, "unknown API token")
	case err != nil:
		return uuid.Nil, domain.Unavailable(err, op, "token lookup failed")
	}
	return userID, nil
}
