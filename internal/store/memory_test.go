package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
)

func TestMemoryStore_UsageAndTier(t *testing.T) {
	s := NewMemoryStore()
	userID := uuid.New()
	s.Provision(userID, domain.PlanTierPremium)

	usage, tier, err := s.UsageAndTier(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier != domain.PlanTierPremium {
		t.Errorf("expected Premium tier, got %s", tier)
	}
	if usage.TranslationChars != 0 || usage.CallMinutes != 0 || usage.StorageBytes != 0 {
		t.Errorf("expected zeroed counters, got %+v", usage)
	}
}

func TestMemoryStore_NotProvisioned(t *testing.T) {
	s := NewMemoryStore()

	_, _, err := s.UsageAndTier(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error for unprovisioned user")
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected ENOTFOUND, got %s", domain.ErrorCode(err))
	}

	err = s.Increment(context.Background(), uuid.New(), domain.CounterCallMinutes, 1)
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		t.Errorf("expected ENOTFOUND on increment, got %s", domain.ErrorCode(err))
	}
}

// Concurrent increments must compose additively with no lost updates.
func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	s := NewMemoryStore()
	userID := uuid.New()
	s.Provision(userID, domain.PlanTierFree)

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := s.Increment(context.Background(), userID, domain.CounterTranslationChars, 1); err != nil {
				t.Errorf("increment failed: %v", err)
			}
		}()
	}
	wg.Wait()

	usage, _, err := s.UsageAndTier(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TranslationChars != n {
		t.Errorf("expected counter=%d after %d concurrent increments, got %d", n, n, usage.TranslationChars)
	}
}

func TestMemoryStore_IncrementRejectsNegative(t *testing.T) {
	s := NewMemoryStore()
	userID := uuid.New()
	s.Provision(userID, domain.PlanTierFree)

	err := s.Increment(context.Background(), userID, domain.CounterStorageBytes, -5)
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("expected EINVALID for negative amount, got %v", err)
	}
}

func TestMemoryStore_ResetPeriod(t *testing.T) {
	s := NewMemoryStore()
	userID := uuid.New()
	s.Provision(userID, domain.PlanTierFree)

	for _, c := range []domain.Counter{
		domain.CounterTranslationChars,
		domain.CounterCallMinutes,
		domain.CounterStorageBytes,
	} {
		if err := s.Increment(context.Background(), userID, c, 10); err != nil {
			t.Fatalf("increment %s: %v", c, err)
		}
	}

	if err := s.ResetPeriod(context.Background(), userID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	usage, _, err := s.UsageAndTier(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.TranslationChars != 0 || usage.CallMinutes != 0 || usage.StorageBytes != 0 {
		t.Errorf("expected zeroed counters after reset, got %+v", usage)
	}
}

func TestMemoryStore_FailWith(t *testing.T) {
	s := NewMemoryStore()
	userID := uuid.New()
	s.Provision(userID, domain.PlanTierFree)
	s.FailWith = errors.New("connection refused")

	_, _, err := s.UsageAndTier(context.Background(), userID)
	if domain.ErrorCode(err) != domain.EUNAVAILABLE {
		t.Errorf("expected EUNAVAILABLE, got %v", err)
	}
	err = s.Increment(context.Background(), userID, domain.CounterCallMinutes, 1)
	if domain.ErrorCode(err) != domain.EUNAVAILABLE {
		t.Errorf("expected EUNAVAILABLE on increment, got %v", err)
	}
}

func TestMemoryStore_TokenLookup(t *testing.T) {
	s := NewMemoryStore()
	userID := uuid.New()
	s.AddToken("abc123", userID)

	got, err := s.UserIDForToken(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != userID {
		t.Errorf("expected %s, got %s", userID, got)
	}

	_, err = s.UserIDForToken(context.Background(), "nope")
	if domain.ErrorCode(err) != domain.EUNAUTHORIZED {
		t.Errorf("expected EUNAUTHORIZED, got %v", err)
	}
}
