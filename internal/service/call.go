// Package service contains the business logic layer.
//
// This file implements the metered call session controller. A call
// consumes quota over time, so the controller re-checks quota on a
// fixed cadence (one tick per minute of session time), books each
// elapsed minute, and tears the session down when the allowance runs
// out.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/domain"
	"github.com/mwilcek/fluentbridge/internal/metrics"
)

// CallState is the lifecycle state of a metered call session.
type CallState string

const (
	CallStateActive      CallState = "active"
	CallStateTerminating CallState = "terminating"
	CallStateTerminated  CallState = "terminated"
)

// TerminateReason explains why the controller tore a session down.
type TerminateReason string

const (
	// TerminateQuotaExhausted: the per-minute check came back denied.
	TerminateQuotaExhausted TerminateReason = "quota_exhausted"
	// TerminateCheckFailed: quota could not be verified (store down).
	// The session ends rather than running unmetered.
	TerminateCheckFailed TerminateReason = "check_failed"
)

// TerminateFunc is invoked once when the controller decides to end a
// session. The callback signals the signaling layer to tear down the
// underlying call; it must not block for long.
type TerminateFunc func(sessionID uuid.UUID, reason TerminateReason)

// ticker abstracts time.Ticker so tests can drive the metering loop
// without wall-clock delays.
type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type wallTicker struct{ *time.Ticker }

func (t wallTicker) Chan() <-chan time.Time { return t.C }

// CallSession is one active metered call.
type CallSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	StartedAt time.Time

	mu    sync.Mutex
	state CallState

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	onTerminate TerminateFunc
}

// State returns the session's current lifecycle state.
func (s *CallSession) State() CallState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *CallSession) setState(state CallState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Done is closed when the metering loop has fully stopped. No
// increment is issued after Done is closed.
func (s *CallSession) Done() <-chan struct{} {
	return s.done
}

// CallController starts and meters call sessions.
type CallController struct {
	quota  QuotaService
	logger *slog.Logger
	tick   time.Duration

	// newTicker is swapped for a fake in tests.
	newTicker func(time.Duration) ticker

	mu       sync.Mutex
	sessions map[uuid.UUID]*CallSession
}

// NewCallController creates a CallController. tick is the metering
// cadence; production uses one minute so each tick books one minute.
func NewCallController(quota QuotaService, tick time.Duration, logger *slog.Logger) *CallController {
	return &CallController{
		quota:     quota,
		logger:    logger,
		tick:      tick,
		newTicker: func(d time.Duration) ticker { return wallTicker{time.NewTicker(d)} },
		sessions:  make(map[uuid.UUID]*CallSession),
	}
}

// Start admits a new call session. The initial check consumes nothing;
// the first minute is booked by the first tick.
func (c *CallController) Start(ctx context.Context, userID uuid.UUID, onTerminate TerminateFunc) (*CallSession, error) {
	const op = "call.start"

	status, err := c.quota.Check(ctx, userID, domain.ActionCall, 1)
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return nil, domain.QuotaExceeded(op, domain.ActionCall)
	}

	session := &CallSession{
		ID:          uuid.New(),
		UserID:      userID,
		StartedAt:   time.Now().UTC(),
		state:       CallStateActive,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
		onTerminate: onTerminate,
	}

	c.mu.Lock()
	c.sessions[session.ID] = session
	c.mu.Unlock()

	metrics.ActiveCallSessions.Inc()
	c.logger.Info("Call session started",
		"session_id", session.ID,
		"user_id", userID,
		"remaining_minutes", status.Remaining,
	)

	go c.meter(session)
	return session, nil
}

// Session returns an active session by ID.
func (c *CallController) Session(id uuid.UUID) (*CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Hangup ends a session on the user's initiative. It returns after the
// metering loop has stopped; an increment already in flight at that
// moment is allowed to land, so hangup can overcount by at most one
// minute.
func (c *CallController) Hangup(id uuid.UUID) error {
	const op = "call.hangup"

	c.mu.Lock()
	session, ok := c.sessions[id]
	c.mu.Unlock()
	if !ok {
		return domain.NotFound(op, "call session", id.String())
	}

	// Concurrent hangups for the same session must not double-close.
	session.stopOnce.Do(func() { close(session.stopCh) })
	<-session.done
	return nil
}

// Shutdown stops all active sessions, for graceful server shutdown.
func (c *CallController) Shutdown() {
	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		_ = c.Hangup(id)
	}
}

// meter is the per-session metering loop. Each tick re-checks quota
// and, when allowed, books exactly one minute. Partial minutes at
// session end are neither credited nor charged.
func (c *CallController) meter(session *CallSession) {
	defer func() {
		session.setState(CallStateTerminated)
		c.mu.Lock()
		delete(c.sessions, session.ID)
		c.mu.Unlock()
		metrics.ActiveCallSessions.Dec()
		close(session.done)
	}()

	t := c.newTicker(c.tick)
	defer t.Stop()

	for {
		select {
		case <-session.stopCh:
			c.logger.Info("Call session ended", "session_id", session.ID, "user_id", session.UserID)
			return
		case <-t.Chan():
			// A stop racing the tick wins: no increment once hangup
			// has been observed.
			select {
			case <-session.stopCh:
				c.logger.Info("Call session ended", "session_id", session.ID, "user_id", session.UserID)
				return
			default:
			}

			if !c.bookMinute(session) {
				return
			}
		}
	}
}

// bookMinute performs one check+increment cycle. Returns false when the
// session was terminated.
func (c *CallController) bookMinute(session *CallSession) bool {
	ctx := context.Background()

	status, err := c.quota.Check(ctx, session.UserID, domain.ActionCall, 1)
	if err != nil {
		c.terminate(session, TerminateCheckFailed)
		return false
	}
	if !status.Allowed {
		c.terminate(session, TerminateQuotaExhausted)
		return false
	}

	if err := c.quota.Record(ctx, session.UserID, domain.ActionCall, 1); err != nil {
		c.logger.Error("Failed to record call minute",
			"session_id", session.ID,
			"user_id", session.UserID,
			"error", err,
		)
		c.terminate(session, TerminateCheckFailed)
		return false
	}

	metrics.CallMinutesMetered.Inc()
	if status.IsWarningZone {
		c.logger.Info("Call minutes in warning zone",
			"session_id", session.ID,
			"user_id", session.UserID,
			"usage_percent", status.UsagePercent,
		)
	}
	return true
}

func (c *CallController) terminate(session *CallSession, reason TerminateReason) {
	session.setState(CallStateTerminating)
	c.logger.Info("Terminating call session",
		"session_id", session.ID,
		"user_id", session.UserID,
		"reason", reason,
	)
	metrics.CallSessionsTerminated.WithLabelValues(string(reason)).Inc()
	if session.onTerminate != nil {
		session.onTerminate(session.ID, reason)
	}
}
