package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/renewly/internal/metrics"
	"github.com/dukerupert/renewly/internal/model"
)

// ErrNoChannels is returned when the user has no enabled channel that can
// deliver the reminder.
var ErrNoChannels = errors.New("no enabled notification channel")

// Sender delivers a message over one channel. ch carries the user's sound and
// vibration settings for that channel.
type Sender interface {
	Send(ctx context.Context, userID int64, ch model.NotificationChannel, msg Message) error
}

// ChannelSource lists a user's channel settings.
type ChannelSource interface {
	ListChannels(ctx context.Context, userID int64) ([]model.NotificationChannel, error)
}

// Dispatcher fans a reminder out to every channel the user enabled.
type Dispatcher struct {
	channels ChannelSource
	senders  map[string]Sender
	logger   *slog.Logger
}

func NewDispatcher(channels ChannelSource, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		senders:  make(map[string]Sender),
		logger:   logger,
	}
}

// Register installs the sender for a channel, replacing any previous one.
func (d *Dispatcher) Register(channel string, s Sender) {
	d.senders[channel] = s
}

// Notify implements reminder.Notifier. Every enabled channel is attempted;
// failures are joined into the returned error.
func (d *Dispatcher) Notify(ctx context.Context, notice model.ReminderNotice) error {
	chans, err := d.channels.ListChannels(ctx, notice.UserID)
	if err != nil {
		return fmt.Errorf("list notification channels: %w", err)
	}

	msg := Compose(notice)
	var errs []error
	attempted := 0
	for _, ch := range chans {
		if !ch.Enabled {
			continue
		}
		sender, ok := d.senders[ch.Channel]
		if !ok {
			d.logger.Debug("no sender for channel", "channel", ch.Channel)
			continue
		}
		attempted++
		if err := sender.Send(ctx, notice.UserID, ch, msg); err != nil {
			metrics.NotifyFailures.WithLabelValues(ch.Channel).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", ch.Channel, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if attempted == 0 {
		return ErrNoChannels
	}
	return nil
}
