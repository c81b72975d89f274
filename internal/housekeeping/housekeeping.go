package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/renewly/internal/metrics"
	"github.com/robfig/cron/v3"
)

type HistoryPurger interface {
	PurgeResolved(ctx context.Context, before time.Time) (int64, error)
}

// Cleaner drops expired in-memory state, like rate limiter windows.
type Cleaner interface {
	Cleanup()
}

// Housekeeper runs maintenance jobs on cron schedules.
type Housekeeper struct {
	cron      *cron.Cron
	history   HistoryPurger
	cleaners  []Cleaner
	spec      string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func New(history HistoryPurger, spec string, retention time.Duration, loc *time.Location, logger *slog.Logger, cleaners ...Cleaner) *Housekeeper {
	if loc == nil {
		loc = time.Local
	}
	return &Housekeeper{
		cron:      cron.New(cron.WithLocation(loc)),
		history:   history,
		cleaners:  cleaners,
		spec:      spec,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Start schedules the jobs and starts the cron runner.
func (h *Housekeeper) Start() error {
	if _, err := h.cron.AddFunc(h.spec, h.purgeJob); err != nil {
		return fmt.Errorf("schedule history purge %q: %w", h.spec, err)
	}
	if len(h.cleaners) > 0 {
		if _, err := h.cron.AddFunc("@every 10m", h.cleanupJob); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}
	h.cron.Start()
	h.logger.Info("housekeeping started", "purge_spec", h.spec, "retention", h.retention)
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (h *Housekeeper) Stop(ctx context.Context) {
	select {
	case <-h.cron.Stop().Done():
	case <-ctx.Done():
		h.logger.Warn("housekeeping stop timed out")
	}
}

// PurgeHistory deletes viewed and dismissed reminders older than the
// retention period.
func (h *Housekeeper) PurgeHistory(ctx context.Context) (int64, error) {
	cutoff := h.now().Add(-h.retention)
	n, err := h.history.PurgeResolved(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.ResolvedRemindersPurged.Add(float64(n))
	return n, nil
}

func (h *Housekeeper) purgeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := h.PurgeHistory(ctx)
	if err != nil {
		h.logger.Error("purge reminder history", "error", err)
		return
	}
	if n > 0 {
		h.logger.Info("purged reminder history", "count", n)
	}
}

func (h *Housekeeper) cleanupJob() {
	for _, c := range h.cleaners {
		c.Cleanup()
	}
}
