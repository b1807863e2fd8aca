package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mwilcek/fluentbridge/internal/store"
)

// ResetScheduler rolls usage counters over at the end of each billing
// period. It polls the store on a fixed cadence and resets every user
// whose period has lapsed, so rollover happens even for users who never
// send another request.
type ResetScheduler struct {
	resetter store.PeriodResetter
	period   time.Duration
	interval time.Duration
	logger   *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// NewResetScheduler creates a ResetScheduler. period is the billing
// period length; interval is how often lapsed periods are looked for.
// The scheduler must be started with Start() and stopped with Stop().
func NewResetScheduler(resetter store.PeriodResetter, period, interval time.Duration, logger *slog.Logger) *ResetScheduler {
	return &ResetScheduler{
		resetter: resetter,
		period:   period,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the rollover loop. An immediate sweep runs first so
// periods that lapsed while the server was down roll over right away.
func (s *ResetScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
	s.logger.Info("Reset scheduler started", "period", s.period, "interval", s.interval)
}

// Stop signals the scheduler to stop and waits for the loop to finish.
func (s *ResetScheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Reset scheduler stopped")
}

func (s *ResetScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ResetScheduler) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.period)
	count, err := s.resetter.ResetExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error("Usage rollover sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Usage periods rolled over", "users", count)
	}
}
