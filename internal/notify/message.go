package notify

import (
	"fmt"

	"github.com/dukerupert/renewly/internal/model"
)

// Message is a rendered reminder, independent of the delivery channel.
type Message struct {
	Kind           string
	SubscriptionID int64
	Days           int
	Title          string
	Body           string
	Path           string
	Tag            string
}

// Message kinds.
const (
	KindRenewal    = "renewal"
	KindExpiration = "expiration"
	KindOverdue    = "overdue"
)

// Compose renders a notice into a user-facing message.
func Compose(n model.ReminderNotice) Message {
	sub := n.Subscription
	msg := Message{
		SubscriptionID: sub.ID,
		Days:           n.DaysUntilRenewal,
		Path:           fmt.Sprintf("/subscriptions/%d", sub.ID),
		Tag:            fmt.Sprintf("subscription-%d", sub.ID),
	}

	switch {
	case n.Overdue:
		msg.Kind = KindOverdue
		msg.Title = "Subscription expired"
		msg.Body = fmt.Sprintf("%s has expired. Renew or cancel it to stop these reminders.", sub.Name)
	case n.Type == model.ReminderRenewal:
		msg.Kind = KindRenewal
		msg.Title = "Upcoming renewal"
		msg.Body = fmt.Sprintf("%s renews %s%s.", sub.Name, when(n.DaysUntilRenewal), amount(sub))
	default:
		msg.Kind = KindExpiration
		msg.Title = "Subscription expiring"
		msg.Body = fmt.Sprintf("%s expires %s.", sub.Name, when(n.DaysUntilRenewal))
	}
	return msg
}

func when(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", days)
}

func amount(sub model.Subscription) string {
	if sub.AmountCents <= 0 {
		return ""
	}
	return fmt.Sprintf(" for %d.%02d %s", sub.AmountCents/100, sub.AmountCents%100, sub.Currency)
}
