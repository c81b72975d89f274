package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/push"
	"github.com/dukerupert/renewly/internal/websocket"
)

type DeviceStore interface {
	ListByUser(ctx context.Context, userID int64) ([]model.PushDevice, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

type PushService interface {
	Send(ctx context.Context, device *model.PushDevice, payload push.Payload) error
}

// PushSender delivers to every registered device of the user and forgets
// devices whose endpoint the push service reports as gone.
type PushSender struct {
	service PushService
	devices DeviceStore
	logger  *slog.Logger
}

func NewPushSender(service PushService, devices DeviceStore, logger *slog.Logger) *PushSender {
	return &PushSender{service: service, devices: devices, logger: logger}
}

func (p *PushSender) Send(ctx context.Context, userID int64, ch model.NotificationChannel, msg Message) error {
	devices, err := p.devices.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list push devices: %w", err)
	}

	payload := push.Payload{
		Title:  msg.Title,
		Body:   msg.Body,
		URL:    msg.Path,
		Tag:    msg.Tag,
		Silent: !ch.Sound,
	}
	if ch.Vibration {
		payload.Vibrate = push.DefaultVibration
	}

	var errs []error
	for i := range devices {
		dev := &devices[i]
		err := p.service.Send(ctx, dev, payload)
		if errors.Is(err, push.ErrExpired) {
			p.logger.Info("removing expired push device", "user_id", userID, "device_id", dev.ID)
			if err := p.devices.DeleteByEndpoint(ctx, dev.Endpoint); err != nil {
				errs = append(errs, fmt.Errorf("delete expired device: %w", err))
			}
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type Mailer interface {
	SendReminder(ctx context.Context, toEmail, subject, body, path string) error
}

// EmailSender mails the reminder to the user's address.
type EmailSender struct {
	mailer Mailer
	users  UserLookup
}

func NewEmailSender(mailer Mailer, users UserLookup) *EmailSender {
	return &EmailSender{mailer: mailer, users: users}
}

func (e *EmailSender) Send(ctx context.Context, userID int64, _ model.NotificationChannel, msg Message) error {
	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %d not found", userID)
	}
	return e.mailer.SendReminder(ctx, user.Email, msg.Title, msg.Body, msg.Path)
}

type Publisher interface {
	SendToUser(userID int64, msg websocket.Message) int
}

// InAppSender pushes the reminder to the user's open browser sessions. A user
// with no open session is not an error; the reminder history still shows it.
type InAppSender struct {
	hub Publisher
}

func NewInAppSender(hub Publisher) *InAppSender {
	return &InAppSender{hub: hub}
}

func (s *InAppSender) Send(_ context.Context, userID int64, ch model.NotificationChannel, msg Message) error {
	s.hub.SendToUser(userID, websocket.NewMessage("reminder", msg.Kind, msg.SubscriptionID, map[string]any{
		"title":     msg.Title,
		"body":      msg.Body,
		"days":      msg.Days,
		"url":       msg.Path,
		"sound":     ch.Sound,
		"vibration": ch.Vibration,
	}))
	return nil
}
