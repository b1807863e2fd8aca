package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
)

// MemoryStore is an in-process UsageStore for tests and local
// development. A single mutex stands in for the store-side atomicity
// the real backends get from UPDATE/HINCRBY.
type MemoryStore struct {
	mu     sync.Mutex
	usage  map[uuid.UUID]*domain.UserUsage
	tiers  map[uuid.UUID]domain.PlanTier
	tokens map[string]uuid.UUID

	// FailWith, when set, makes every store call return this error.
	// Used to exercise fail-closed paths in tests.
	FailWith error
}

var (
	_ UsageStore     = (*MemoryStore)(nil)
	_ PeriodResetter = (*MemoryStore)(nil)
	_ TokenVerifier  = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usage:  make(map[uuid.UUID]*domain.UserUsage),
		tiers:  make(map[uuid.UUID]domain.PlanTier),
		tokens: make(map[string]uuid.UUID),
	}
}

// Provision creates a zeroed usage row for a user on the given tier.
func (s *MemoryStore) Provision(userID uuid.UUID, tier domain.PlanTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[userID] = &domain.UserUsage{
		UserID:        userID,
		LastResetDate: time.Now().UTC(),
	}
	s.tiers[userID] = tier
}

// SetUsage overwrites a user's counters. Test setup only.
func (s *MemoryStore) SetUsage(userID uuid.UUID, usage domain.UserUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usage.UserID = userID
	s.usage[userID] = &usage
}

// AddToken registers an API token digest for a user.
func (s *MemoryStore) AddToken(digest string, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[digest] = userID
}

func (s *MemoryStore) UsageAndTier(_ context.Context, userID uuid.UUID) (domain.UserUsage, domain.PlanTier, error) {
	const op = "store.usage_and_tier"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return domain.UserUsage{}, "", domain.Unavailable(s.FailWith, op, "usage store query failed")
	}
	u, ok := s.usage[userID]
	if !ok {
		return domain.UserUsage{}, "", domain.NotProvisioned(op, userID.String())
	}
	tier, ok := s.tiers[userID]
	if !ok {
		tier = domain.PlanTierFree
	}
	return *u, tier, nil
}

func (s *MemoryStore) Increment(_ context.Context, userID uuid.UUID, counter domain.Counter, amount int64) error {
	const op = "store.increment"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return domain.Unavailable(s.FailWith, op, "usage store update failed")
	}
	if amount < 0 {
		return domain.Errorf(domain.EINVALID, op, "negative increment %d", amount)
	}
	u, ok := s.usage[userID]
	if !ok {
		return domain.NotProvisioned(op, userID.String())
	}
	switch counter {
	case domain.CounterTranslationChars:
		u.TranslationChars += amount
	case domain.CounterCallMinutes:
		u.CallMinutes += amount
	case domain.CounterStorageBytes:
		u.StorageBytes += amount
	default:
		return domain.Errorf(domain.EINVALID, op, "unknown counter %q", counter)
	}
	return nil
}

func (s *MemoryStore) ResetPeriod(_ context.Context, userID uuid.UUID) error {
	const op = "store.reset_period"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return domain.Unavailable(s.FailWith, op, "usage store reset failed")
	}
	u, ok := s.usage[userID]
	if !ok {
		return domain.NotProvisioned(op, userID.String())
	}
	u.TranslationChars = 0
	u.CallMinutes = 0
	u.StorageBytes = 0
	u.LastResetDate = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ResetExpired(_ context.Context, cutoff time.Time) (int64, error) {
	const op = "store.reset_expired"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, domain.Unavailable(s.FailWith, op, "usage store reset failed")
	}
	var reset int64
	for _, u := range s.usage {
		if !u.LastResetDate.Before(cutoff) {
			continue
		}
		u.TranslationChars = 0
		u.CallMinutes = 0
		u.StorageBytes = 0
		u.LastResetDate = time.Now().UTC()
		reset++
	}
	return reset, nil
}

func (s *MemoryStore) UserIDForToken(_ context.Context, digest string) (uuid.UUID, error) {
	const op = "store.user_for_token"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return uuid.Nil, domain.Unavailable(s.FailWith, op, "token lookup failed")
	}
	userID, ok := s.tokens[digest]
	if !ok {
		return uuid.Nil, domain.Unauthorized(op, "unknown API token")
	}
	return userID, nil
}
