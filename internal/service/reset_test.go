package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/store"
)

func TestResetScheduler_RollsOverLapsedPeriods(t *testing.T) {
	mem := store.NewMemoryStore()

	lapsed := uuid.New()
	mem.Provision(lapsed, domain.PlanTierFree)
	mem.SetUsage(lapsed, domain.UserUsage{
		TranslationChars: 1_500_000,
		CallMinutes:      80,
		StorageBytes:     1024,
		LastResetDate:    time.Now().UTC().Add(-31 * 24 * time.Hour),
	})

	current := uuid.New()
	mem.Provision(current, domain.PlanTierFree)
	mem.SetUsage(current, domain.UserUsage{
		TranslationChars: 500,
		LastResetDate:    time.Now().UTC(),
	})

	// A long sweep interval means only the startup sweep runs.
	s := NewResetScheduler(mem, 30*24*time.Hour, time.Hour, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		usage, _, err := mem.UsageAndTier(context.Background(), lapsed)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if usage.TranslationChars == 0 {
			if usage.CallMinutes != 0 || usage.StorageBytes != 0 {
				t.Errorf("partial reset: %+v", usage)
			}
			untouched, _, _ := mem.UsageAndTier(context.Background(), current)
			if untouched.TranslationChars != 500 {
				t.Errorf("current-period user was reset: %+v", untouched)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("lapsed period was not rolled over")
}

func TestResetExpired_ReturnsCount(t *testing.T) {
	mem := store.NewMemoryStore()
	for i := 0; i < 3; i++ {
		id := uuid.New()
		mem.Provision(id, domain.PlanTierFree)
		mem.SetUsage(id, domain.UserUsage{
			CallMinutes:   int64(i + 1),
			LastResetDate: time.Now().UTC().Add(-40 * 24 * time.Hour),
		})
	}

	count, err := mem.ResetExpired(context.Background(), time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
