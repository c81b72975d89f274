package reminder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/renewly/internal/model"
)

// SubscriptionSource lists and updates a user's tracked subscriptions.
type SubscriptionSource interface {
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Subscription, error)
	UpdateStatus(ctx context.Context, id int64, status model.SubscriptionStatus) error
}

// PreferenceSource exposes per-user reminder settings. GetReminderPreference
// returns nil when the user has none.
type PreferenceSource interface {
	ListUserIDsWithRemindersEnabled(ctx context.Context) ([]int64, error)
	GetReminderPreference(ctx context.Context, userID int64) (*model.ReminderPreference, error)
}

// Ledger records reminders. CreateSent must fail with store.ErrReminderExists
// when a sent entry for the same subscription and renewal date exists.
type Ledger interface {
	FindPending(ctx context.Context, subscriptionID int64, renewalDate time.Time) (*model.ReminderHistoryEntry, error)
	CreateSent(ctx context.Context, entry model.ReminderHistoryEntry) (*model.ReminderHistoryEntry, error)
	CancelPending(ctx context.Context, subscriptionID int64) (int64, error)
}

// Notifier delivers a reminder notice to the user's channels.
type Notifier interface {
	Notify(ctx context.Context, notice model.ReminderNotice) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Deps are the collaborators a Scheduler works against.
type Deps struct {
	Subscriptions SubscriptionSource
	Preferences   PreferenceSource
	Ledger        Ledger
	Notifier      Notifier
	Logger        *slog.Logger
}

func (d Deps) validate() error {
	switch {
	case d.Subscriptions == nil:
		return errors.New("reminder: missing subscription source")
	case d.Preferences == nil:
		return errors.New("reminder: missing preference source")
	case d.Ledger == nil:
		return errors.New("reminder: missing ledger")
	case d.Notifier == nil:
		return errors.New("reminder: missing notifier")
	}
	return nil
}

// Option configures a Scheduler in New.
type Option func(*Scheduler)

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}
