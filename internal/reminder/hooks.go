package reminder

import (
	"context"
	"fmt"

	"github.com/dukerupert/renewly/internal/model"
)

// ScheduleForNew evaluates a freshly created subscription right away instead
// of waiting for the next tick. It does nothing when the user has reminders
// disabled.
func (s *Scheduler) ScheduleForNew(ctx context.Context, sub model.Subscription, userID int64) error {
	pref, err := s.prefs.GetReminderPreference(ctx, userID)
	if err != nil {
		return fmt.Errorf("load reminder preference: %w", err)
	}
	if pref == nil || !pref.Enabled {
		return nil
	}
	if pref.AdvanceDays < 0 {
		s.logger.Warn("skipping user with malformed reminder preference",
			"user_id", userID, "advance_days", pref.AdvanceDays)
		return nil
	}

	_, err = s.decide(ctx, sub, userID, pref.AdvanceDays, s.now())
	return err
}

// RescheduleForUpdated drops the subscription's pending reminders and
// evaluates it again, so a changed renewal date gets a fresh reminder.
func (s *Scheduler) RescheduleForUpdated(ctx context.Context, sub model.Subscription, userID int64) error {
	if err := s.CancelFor(ctx, sub.ID); err != nil {
		return err
	}
	return s.ScheduleForNew(ctx, sub, userID)
}

// CancelFor removes all pending reminders for the subscription.
func (s *Scheduler) CancelFor(ctx context.Context, subscriptionID int64) error {
	n, err := s.ledger.CancelPending(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("cancel pending reminders: %w", err)
	}
	if n > 0 {
		s.logger.Debug("cancelled pending reminders", "subscription_id", subscriptionID, "count", n)
	}
	return nil
}
