package model

import "time"

type ReminderType string

const (
	ReminderExpiration ReminderType = "expiration"
	ReminderRenewal    ReminderType = "renewal"
)

func (t ReminderType) Valid() bool {
	return t == ReminderExpiration || t == ReminderRenewal
}

type ReminderStatus string

const (
	ReminderSent      ReminderStatus = "sent"
	ReminderViewed    ReminderStatus = "viewed"
	ReminderDismissed ReminderStatus = "dismissed"
)

// ReminderHistoryEntry is the ledger record for one reminder. ReminderDate is
// the renewal date the reminder pertains to, not the day it was sent.
type ReminderHistoryEntry struct {
	ID             string         `json:"id"`
	UserID         int64          `json:"user_id"`
	SubscriptionID int64          `json:"subscription_id"`
	Type           ReminderType   `json:"reminder_type"`
	ReminderDate   time.Time      `json:"reminder_date"`
	Status         ReminderStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ReminderNotice is what a notifier delivers. Overdue is set when the
// renewal date has already passed and the subscription was expired.
type ReminderNotice struct {
	Type             ReminderType `json:"reminder_type"`
	UserID           int64        `json:"user_id"`
	Subscription     Subscription `json:"subscription"`
	DaysUntilRenewal int          `json:"days_until_renewal"`
	Overdue          bool         `json:"overdue"`
}
