package reminder

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dukerupert/renewly/internal/model"
)

// Upcoming is a subscription with its freshly computed distance to renewal.
type Upcoming struct {
	model.Subscription
	DaysUntilRenewal int `json:"days_until_renewal"`
}

// GetExpiringSubscriptions returns the user's subscriptions without auto-renew
// that lapse within the next days days, today included.
func (s *Scheduler) GetExpiringSubscriptions(ctx context.Context, userID int64, days int) ([]Upcoming, error) {
	return s.upcoming(ctx, userID, days, false)
}

// GetUpcomingAutoRenewals returns the user's auto-renewing subscriptions that
// renew within the next days days, today included.
func (s *Scheduler) GetUpcomingAutoRenewals(ctx context.Context, userID int64, days int) ([]Upcoming, error) {
	return s.upcoming(ctx, userID, days, true)
}

func (s *Scheduler) upcoming(ctx context.Context, userID int64, days int, autoRenew bool) ([]Upcoming, error) {
	subs, err := s.subs.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}

	now := s.now()
	out := []Upcoming{}
	for _, sub := range subs {
		if sub.Status != model.SubscriptionActive || sub.AutoRenew != autoRenew {
			continue
		}
		d := daysUntil(now, sub.RenewalDate)
		if d < 0 || d > days {
			continue
		}
		out = append(out, Upcoming{Subscription: sub, DaysUntilRenewal: d})
	}

	slices.SortStableFunc(out, func(a, b Upcoming) int {
		if c := a.RenewalDate.Compare(b.RenewalDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
