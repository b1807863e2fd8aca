package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mwilcek/fluentbridge/internal/domain"
)

// RedisStore implements UsageStore and TokenVerifier on Redis.
//
// Layout per user:
//
//	<prefix>usage:<user_id> — hash with the three counters plus
//	                          last_reset_date (unix seconds)
//	<prefix>tier:<user_id>  — active tier name, absent means Free
//	<prefix>token:<digest>  — API token digest -> user id
type RedisStore struct {
	client    goredis.Cmdable
	keyPrefix string
	timeout   time.Duration
}

var (
	_ UsageStore     = (*RedisStore)(nil)
	_ PeriodResetter = (*RedisStore)(nil)
	_ TokenVerifier  = (*RedisStore)(nil)
)

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default "fluentbridge:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

// NewRedisStore creates a RedisStore. The client must be a connected
// *goredis.Client or *goredis.ClusterClient.
func NewRedisStore(client goredis.Cmdable, timeout time.Duration, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: "fluentbridge:",
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) usageKey(userID uuid.UUID) string { return s.keyPrefix + "usage:" + userID.String() }
func (s *RedisStore) tierKey(userID uuid.UUID) string  { return s.keyPrefix + "tier:" + userID.String() }
func (s *RedisStore) tokenKey(digest string) string    { return s.keyPrefix + "token:" + digest }

// incrScript increments a counter field only when the usage hash
// already exists. HINCRBY alone would silently provision a missing
// user, hiding a data-integrity bug.
//
// KEYS[1] = usage hash key
// ARGV[1] = field, ARGV[2] = amount
// Returns -1 when the hash is missing, otherwise the new value.
var incrScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
`)

// UsageAndTier loads the usage hash and tier key in one pipeline.
func (s *RedisStore) UsageAndTier(ctx context.Context, userID uuid.UUID) (domain.UserUsage, domain.PlanTier, error) {
	const op = "store.usage_and_tier"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	usageCmd := pipe.HGetAll(ctx, s.usageKey(userID))
	tierCmd := pipe.Get(ctx, s.tierKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return domain.UserUsage{}, "", domain.Unavailable(err, op, "usage store query failed")
	}

	fields := usageCmd.Val()
	if len(fields) == 0 {
		return domain.UserUsage{}, "", domain.NotProvisioned(op, userID.String())
	}

	usage := domain.UserUsage{
		UserID:           userID,
		TranslationChars: parseField(fields, string(domain.CounterTranslationChars)),
		CallMinutes:      parseField(fields, string(domain.CounterCallMinutes)),
		StorageBytes:     parseField(fields, string(domain.CounterStorageBytes)),
	}
	if resetUnix := parseField(fields, "last_reset_date"); resetUnix > 0 {
		usage.LastResetDate = time.Unix(resetUnix, 0).UTC()
	}

	tier := domain.PlanTierFree
	if name, err := tierCmd.Result(); err == nil && name != "" {
		tier = domain.PlanTier(name)
	}
	return usage, tier, nil
}

// Increment adds amount to one counter via a Lua script, so the
// existence check and the increment execute atomically on the server.
func (s *RedisStore) Increment(ctx context.Context, userID uuid.UUID, counter domain.Counter, amount int64) error {
	const op = "store.increment"

	if _, ok := counterColumns[counter]; !ok {
		return domain.Errorf(domain.EINVALID, op, "unknown counter %q", counter)
	}
	if amount < 0 {
		return domain.Errorf(domain.EINVALID, op, "negative increment %d", amount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := incrScript.Run(ctx, s.client, []string{s.usageKey(userID)}, string(counter), amount).Int64()
	if err != nil {
		return domain.Unavailable(err, op, "usage store update failed")
	}
	if result == -1 {
		return domain.NotProvisioned(op, userID.String())
	}
	return nil
}

// ResetPeriod rewrites all counter fields in a single HSET, which Redis
// applies atomically with respect to concurrent HINCRBYs.
func (s *RedisStore) ResetPeriod(ctx context.Context, userID uuid.UUID) error {
	const op = "store.reset_period"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.client.Exists(ctx, s.usageKey(userID)).Result()
	if err != nil {
		return domain.Unavailable(err, op, "usage store reset failed")
	}
	if exists == 0 {
		return domain.NotProvisioned(op, userID.String())
	}

	err = s.client.HSet(ctx, s.usageKey(userID),
		string(domain.CounterTranslationChars), 0,
		string(domain.CounterCallMinutes), 0,
		string(domain.CounterStorageBytes), 0,
		"last_reset_date", time.Now().UTC().Unix(),
	).Err()
	if err != nil {
		return domain.Unavailable(err, op, "usage store reset failed")
	}
	return nil
}

// ResetExpired scans the usage hashes and rolls over every user whose
// period lapsed before the cutoff. SCAN keeps the server responsive on
// large keyspaces; per-user resets reuse the atomic HSET path. Every
// round trip carries the store timeout so a stalled server cannot hang
// the sweep.
func (s *RedisStore) ResetExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "store.reset_expired"

	var reset int64
	var cursor uint64
	for {
		keys, next, err := s.scanUsageKeys(ctx, cursor)
		if err != nil {
			return reset, domain.Unavailable(err, op, "usage store scan failed")
		}

		for _, key := range keys {
			resetUnix, err := s.lastResetUnix(ctx, key)
			if err == goredis.Nil {
				continue
			}
			if err != nil {
				return reset, domain.Unavailable(err, op, "usage store scan failed")
			}
			if !time.Unix(resetUnix, 0).Before(cutoff) {
				continue
			}

			userID, err := uuid.Parse(key[len(s.keyPrefix+"usage:"):])
			if err != nil {
				continue
			}
			if err := s.ResetPeriod(ctx, userID); err != nil {
				return reset, err
			}
			reset++
		}

		cursor = next
		if cursor == 0 {
			return reset, nil
		}
	}
}

func (s *RedisStore) scanUsageKeys(ctx context.Context, cursor uint64) ([]string, uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Scan(ctx, cursor, s.keyPrefix+"usage:*", 100).Result()
}

func (s *RedisStore) lastResetUnix(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.HGet(ctx, key, "last_reset_date").Int64()
}

// UserIDForToken resolves an API token digest to its owner.
func (s *RedisStore) UserIDForToken(ctx context.Context, digest string) (uuid.UUID, error) {
	const op = "store.user_for_token"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.client.Get(ctx, s.tokenKey(digest)).Result()
	if err == goredis.Nil {
		return uuid.Nil, domain.Unauthorized(op, "unknown API token")
	}
	if err != nil {
		return uuid.Nil, domain.Unavailable(err, op, "token lookup failed")
	}
	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, domain.Internal(err, op, "malformed user id in token mapping")
	}
	return userID, nil
}

func parseField(fields map[string]string, name string) int64 {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
