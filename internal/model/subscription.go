package model

import (
	"fmt"
	"time"
)

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionCancelled, SubscriptionExpired:
		return true
	}
	return false
}

type BillingCycle string

const (
	BillingWeekly    BillingCycle = "weekly"
	BillingMonthly   BillingCycle = "monthly"
	BillingQuarterly BillingCycle = "quarterly"
	BillingYearly    BillingCycle = "yearly"
)

func (c BillingCycle) Valid() bool {
	switch c {
	case BillingWeekly, BillingMonthly, BillingQuarterly, BillingYearly:
		return true
	}
	return false
}

// Next returns the renewal date one billing period after date. Month-based
// cycles clamp to the last day of the target month, so Jan 31 renews on
// Feb 28 rather than rolling into March.
func (c BillingCycle) Next(date time.Time) (time.Time, error) {
	switch c {
	case BillingWeekly:
		return date.AddDate(0, 0, 7), nil
	case BillingMonthly:
		return addMonths(date, 1), nil
	case BillingQuarterly:
		return addMonths(date, 3), nil
	case BillingYearly:
		return addMonths(date, 12), nil
	}
	return time.Time{}, fmt.Errorf("unknown billing cycle %q", c)
}

func addMonths(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(n), 1, date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

type Subscription struct {
	ID           int64              `json:"id"`
	UserID       int64              `json:"user_id"`
	Name         string             `json:"name"`
	AmountCents  int64              `json:"amount_cents"`
	Currency     string             `json:"currency"`
	BillingCycle BillingCycle       `json:"billing_cycle"`
	RenewalDate  time.Time          `json:"renewal_date"`
	AutoRenew    bool               `json:"auto_renew"`
	Status       SubscriptionStatus `json:"status"`
	CategoryID   *int64             `json:"category_id"`
	TagIDs       []int64            `json:"tag_ids"`
	Notes        string             `json:"notes"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
