package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/renewly/internal/metrics"
	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/store"
)

type outcome struct {
	reminded  bool
	expired   bool
	notifyErr error
}

// decide evaluates one subscription against the user's advance window.
//
// Past renewal dates expire the subscription (once) and send an expiration
// notice on every evaluation. Only active subscriptions get window reminders:
// inside the window a sent ledger entry is
// created for the renewal date before the notifier is called, so each cycle
// is notified at most once. Notifier failures keep the ledger entry.
func (s *Scheduler) decide(ctx context.Context, sub model.Subscription, userID int64, advanceDays int, now time.Time) (outcome, error) {
	var out outcome
	if sub.Status == model.SubscriptionCancelled {
		return out, nil
	}

	days := daysUntil(now, sub.RenewalDate)

	if days < 0 {
		var err error
		if sub.Status != model.SubscriptionExpired {
			if err = s.subs.UpdateStatus(ctx, sub.ID, model.SubscriptionExpired); err != nil {
				err = fmt.Errorf("expire subscription: %w", err)
			} else {
				sub.Status = model.SubscriptionExpired
				out.expired = true
				metrics.SubscriptionsExpired.Inc()
			}
		}
		out.notifyErr = s.notify(ctx, model.ReminderNotice{
			Type:             model.ReminderExpiration,
			UserID:           userID,
			Subscription:     sub,
			DaysUntilRenewal: 0,
			Overdue:          true,
		})
		return out, err
	}

	// Expired subscriptions wait for a renew before they are reminded again.
	if sub.Status != model.SubscriptionActive || days > advanceDays {
		return out, nil
	}

	pending, err := s.ledger.FindPending(ctx, sub.ID, sub.RenewalDate)
	if err != nil {
		return out, fmt.Errorf("find pending reminder: %w", err)
	}
	if pending != nil {
		return out, nil
	}

	typ := model.ReminderExpiration
	if sub.AutoRenew {
		typ = model.ReminderRenewal
	}

	_, err = s.ledger.CreateSent(ctx, model.ReminderHistoryEntry{
		UserID:         userID,
		SubscriptionID: sub.ID,
		Type:           typ,
		ReminderDate:   sub.RenewalDate,
	})
	if errors.Is(err, store.ErrReminderExists) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("record reminder: %w", err)
	}
	out.reminded = true
	metrics.RemindersSent.WithLabelValues(string(typ)).Inc()

	out.notifyErr = s.notify(ctx, model.ReminderNotice{
		Type:             typ,
		UserID:           userID,
		Subscription:     sub,
		DaysUntilRenewal: days,
	})
	return out, nil
}

func (s *Scheduler) notify(ctx context.Context, notice model.ReminderNotice) error {
	err := s.notifier.Notify(ctx, notice)
	if err != nil {
		s.logger.Error("deliver reminder",
			"user_id", notice.UserID,
			"subscription_id", notice.Subscription.ID,
			"reminder_type", notice.Type,
			"error", err,
		)
	}
	return err
}
