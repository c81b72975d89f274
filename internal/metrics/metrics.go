package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewly_reminder_sweeps_total",
			Help: "Reminder sweeps by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renewly_reminder_sweep_duration_seconds",
			Help:    "Duration of a full reminder sweep in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewly_reminders_sent_total",
			Help: "Reminder ledger entries created, by reminder type",
		},
		[]string{"reminder_type"},
	)

	SubscriptionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewly_subscriptions_expired_total",
			Help: "Subscriptions transitioned to expired by the scheduler",
		},
	)

	NotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewly_notify_failures_total",
			Help: "Failed reminder deliveries by channel",
		},
		[]string{"channel"},
	)

	ResolvedRemindersPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "renewly_reminders_purged_total",
			Help: "Viewed or dismissed reminders removed by housekeeping",
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
