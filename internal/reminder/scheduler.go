package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukerupert/renewly/internal/metrics"
)

// DefaultInterval is how often the scheduler sweeps.
const DefaultInterval = time.Hour

// ErrSweepInProgress is returned by TriggerCheck while another sweep runs.
var ErrSweepInProgress = errors.New("reminder sweep already in progress")

// SweepStats summarizes one pass over all users.
type SweepStats struct {
	Users         int `json:"users"`
	Subscriptions int `json:"subscriptions"`
	Reminded      int `json:"reminded"`
	Expired       int `json:"expired"`
	Failures      int `json:"failures"`
}

type Status struct {
	IsRunning       bool        `json:"is_running"`
	SweepInProgress bool        `json:"sweep_in_progress"`
	LastSweepAt     *time.Time  `json:"last_sweep_at"`
	LastSweep       *SweepStats `json:"last_sweep,omitempty"`
}

// Scheduler periodically sweeps every user's subscriptions, records due
// reminders in the ledger and hands them to the notifier.
type Scheduler struct {
	subs     SubscriptionSource
	prefs    PreferenceSource
	ledger   Ledger
	notifier Notifier
	logger   *slog.Logger
	clock    Clock
	loc      *time.Location
	interval time.Duration

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	lastAt    time.Time
	lastStats SweepStats

	sweeping atomic.Bool
}

// New builds a stopped scheduler.
func New(deps Deps, opts ...Option) (*Scheduler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		subs:     deps.Subscriptions,
		prefs:    deps.Preferences,
		ledger:   deps.Ledger,
		notifier: deps.Notifier,
		logger:   logger,
		clock:    realClock{},
		loc:      time.Local,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start runs one sweep synchronously and then sweeps on every tick until ctx
// is cancelled or Stop is called. Starting a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		s.logger.Warn("reminder scheduler already running")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info("reminder scheduler started", "interval", s.interval)

	if _, err := s.runSweep(ctx, "startup"); err != nil {
		s.logger.Error("initial reminder sweep", "error", err)
	}

	go func() {
		defer close(done)
		defer s.clearRun(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// clearRun marks the scheduler stopped when the loop for done exits on its
// own, so a later Start is not mistaken for a second start.
func (s *Scheduler) clearRun(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done {
		s.cancel()
		s.cancel, s.done = nil, nil
	}
}

// Stop halts the ticker and waits for the loop to exit. A sweep that is
// already running completes first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("reminder scheduler stopped")
}

// TriggerCheck runs a full sweep now, independent of the ticker.
func (s *Scheduler) TriggerCheck(ctx context.Context) (SweepStats, error) {
	return s.runSweep(ctx, "manual")
}

func (s *Scheduler) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		IsRunning:       s.cancel != nil,
		SweepInProgress: s.sweeping.Load(),
	}
	if !s.lastAt.IsZero() {
		at := s.lastAt
		stats := s.lastStats
		st.LastSweepAt = &at
		st.LastSweep = &stats
	}
	return st
}

func (s *Scheduler) tick(ctx context.Context) {
	stats, err := s.runSweep(ctx, "tick")
	if errors.Is(err, ErrSweepInProgress) {
		s.logger.Warn("previous reminder sweep still running, skipping tick")
		return
	}
	if err != nil {
		s.logger.Error("reminder sweep", "error", err)
		return
	}
	s.logger.Debug("reminder sweep finished",
		"users", stats.Users,
		"subscriptions", stats.Subscriptions,
		"reminded", stats.Reminded,
		"expired", stats.Expired,
		"failures", stats.Failures,
	)
}

// runSweep guards against overlapping sweeps. The sweep itself is detached
// from ctx cancellation so stopping never interrupts half-written state.
func (s *Scheduler) runSweep(ctx context.Context, trigger string) (SweepStats, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		metrics.SweepsTotal.WithLabelValues(trigger, "skipped").Inc()
		return SweepStats{}, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	start := time.Now()
	stats, err := s.sweep(context.WithoutCancel(ctx))
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SweepsTotal.WithLabelValues(trigger, "error").Inc()
		return stats, err
	}
	metrics.SweepsTotal.WithLabelValues(trigger, "ok").Inc()

	s.mu.Lock()
	s.lastAt = s.clock.Now()
	s.lastStats = stats
	s.mu.Unlock()
	return stats, nil
}

func (s *Scheduler) sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	userIDs, err := s.prefs.ListUserIDsWithRemindersEnabled(ctx)
	if err != nil {
		return stats, fmt.Errorf("list users with reminders enabled: %w", err)
	}

	now := s.now()
	for _, userID := range userIDs {
		s.sweepUser(ctx, userID, now, &stats)
	}
	return stats, nil
}

func (s *Scheduler) sweepUser(ctx context.Context, userID int64, now time.Time, stats *SweepStats) {
	logger := s.logger.With("user_id", userID)

	pref, err := s.prefs.GetReminderPreference(ctx, userID)
	if err != nil {
		logger.Error("load reminder preference", "error", err)
		stats.Failures++
		return
	}
	if pref == nil || !pref.Enabled {
		return
	}
	if pref.AdvanceDays < 0 {
		logger.Warn("skipping user with malformed reminder preference", "advance_days", pref.AdvanceDays)
		stats.Failures++
		return
	}
	stats.Users++

	subs, err := s.subs.ListActiveByUser(ctx, userID)
	if err != nil {
		logger.Error("list active subscriptions", "error", err)
		stats.Failures++
		return
	}

	for _, sub := range subs {
		stats.Subscriptions++
		res, err := s.decide(ctx, sub, userID, pref.AdvanceDays, now)
		if res.reminded {
			stats.Reminded++
		}
		if res.expired {
			stats.Expired++
		}
		if res.notifyErr != nil {
			stats.Failures++
		}
		if err != nil {
			logger.Error("evaluate subscription", "subscription_id", sub.ID, "error", err)
			stats.Failures++
		}
	}
}

// Today returns the current calendar date in the scheduler's location, as a
// UTC midnight like stored renewal dates.
func (s *Scheduler) Today() time.Time {
	y, m, d := s.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}
