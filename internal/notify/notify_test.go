package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/push"
	"github.com/dukerupert/renewly/internal/websocket"
)

func notice(typ model.ReminderType, days int, overdue bool) model.ReminderNotice {
	return model.ReminderNotice{
		Type:   typ,
		UserID: 1,
		Subscription: model.Subscription{
			ID: 7, UserID: 1, Name: "Netflix", AmountCents: 1599, Currency: "USD",
		},
		DaysUntilRenewal: days,
		Overdue:          overdue,
	}
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name  string
		in    model.ReminderNotice
		kind  string
		title string
		body  string
	}{
		{"renewal in days", notice(model.ReminderRenewal, 3, false), KindRenewal, "Upcoming renewal", "Netflix renews in 3 days for 15.99 USD."},
		{"renewal tomorrow", notice(model.ReminderRenewal, 1, false), KindRenewal, "Upcoming renewal", "Netflix renews tomorrow for 15.99 USD."},
		{"expiration today", notice(model.ReminderExpiration, 0, false), KindExpiration, "Subscription expiring", "Netflix expires today."},
		{"overdue", notice(model.ReminderExpiration, 0, true), KindOverdue, "Subscription expired", "Netflix has expired. Renew or cancel it to stop these reminders."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Compose(tt.in)
			if msg.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", msg.Kind, tt.kind)
			}
			if msg.Title != tt.title {
				t.Errorf("title = %q, want %q", msg.Title, tt.title)
			}
			if msg.Body != tt.body {
				t.Errorf("body = %q, want %q", msg.Body, tt.body)
			}
			if msg.Path != "/subscriptions/7" || msg.Tag != "subscription-7" {
				t.Errorf("path/tag = %q/%q", msg.Path, msg.Tag)
			}
		})
	}
}

type fakeChannels struct {
	chans []model.NotificationChannel
	err   error
}

func (f fakeChannels) ListChannels(context.Context, int64) ([]model.NotificationChannel, error) {
	return f.chans, f.err
}

type recordingSender struct {
	got []Message
	chs []model.NotificationChannel
	err error
}

func (r *recordingSender) Send(_ context.Context, _ int64, ch model.NotificationChannel, msg Message) error {
	r.got = append(r.got, msg)
	r.chs = append(r.chs, ch)
	return r.err
}

func TestDispatcherSendsToEnabledChannels(t *testing.T) {
	pushS, emailS, inApp := &recordingSender{}, &recordingSender{}, &recordingSender{}
	d := NewDispatcher(fakeChannels{chans: []model.NotificationChannel{
		{Channel: model.ChannelPush, Enabled: true, Sound: true},
		{Channel: model.ChannelEmail, Enabled: false},
		{Channel: model.ChannelInApp, Enabled: true},
	}}, slog.Default())
	d.Register(model.ChannelPush, pushS)
	d.Register(model.ChannelEmail, emailS)
	d.Register(model.ChannelInApp, inApp)

	if err := d.Notify(context.Background(), notice(model.ReminderRenewal, 2, false)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(pushS.got) != 1 || len(inApp.got) != 1 {
		t.Errorf("push=%d in_app=%d, want 1 each", len(pushS.got), len(inApp.got))
	}
	if len(emailS.got) != 0 {
		t.Errorf("email = %d, want 0", len(emailS.got))
	}
	if !pushS.chs[0].Sound {
		t.Error("push sender should see the channel's sound setting")
	}
}

func TestDispatcherJoinsFailures(t *testing.T) {
	errPush := errors.New("push down")
	pushS := &recordingSender{err: errPush}
	inApp := &recordingSender{}
	d := NewDispatcher(fakeChannels{chans: []model.NotificationChannel{
		{Channel: model.ChannelPush, Enabled: true},
		{Channel: model.ChannelInApp, Enabled: true},
	}}, slog.Default())
	d.Register(model.ChannelPush, pushS)
	d.Register(model.ChannelInApp, inApp)

	err := d.Notify(context.Background(), notice(model.ReminderRenewal, 2, false))
	if !errors.Is(err, errPush) {
		t.Fatalf("err = %v, want push failure", err)
	}
	if len(inApp.got) != 1 {
		t.Error("a failing channel must not stop the others")
	}
}

func TestDispatcherNoChannels(t *testing.T) {
	d := NewDispatcher(fakeChannels{chans: []model.NotificationChannel{
		{Channel: model.ChannelPush, Enabled: false},
		{Channel: "sms", Enabled: true},
	}}, slog.Default())
	d.Register(model.ChannelPush, &recordingSender{})

	err := d.Notify(context.Background(), notice(model.ReminderRenewal, 2, false))
	if !errors.Is(err, ErrNoChannels) {
		t.Fatalf("err = %v, want ErrNoChannels", err)
	}
}

func TestDispatcherChannelLookupError(t *testing.T) {
	d := NewDispatcher(fakeChannels{err: errors.New("db gone")}, slog.Default())
	if err := d.Notify(context.Background(), notice(model.ReminderRenewal, 2, false)); err == nil {
		t.Fatal("expected error")
	}
}

type fakeDevices struct {
	devices []model.PushDevice
	deleted []string
}

func (f *fakeDevices) ListByUser(context.Context, int64) ([]model.PushDevice, error) {
	return f.devices, nil
}

func (f *fakeDevices) DeleteByEndpoint(_ context.Context, endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

type fakePushService struct {
	payloads []push.Payload
	failFor  map[string]error
}

func (f *fakePushService) Send(_ context.Context, dev *model.PushDevice, p push.Payload) error {
	f.payloads = append(f.payloads, p)
	return f.failFor[dev.Endpoint]
}

func TestPushSenderRemovesExpiredDevices(t *testing.T) {
	devices := &fakeDevices{devices: []model.PushDevice{
		{ID: 1, Endpoint: "https://push.test/a"},
		{ID: 2, Endpoint: "https://push.test/b"},
	}}
	svc := &fakePushService{failFor: map[string]error{"https://push.test/a": push.ErrExpired}}
	s := NewPushSender(svc, devices, slog.Default())

	msg := Compose(notice(model.ReminderRenewal, 1, false))
	err := s.Send(context.Background(), 1, model.NotificationChannel{Channel: model.ChannelPush, Vibration: true}, msg)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(devices.deleted) != 1 || devices.deleted[0] != "https://push.test/a" {
		t.Errorf("deleted = %v, want [https://push.test/a]", devices.deleted)
	}
	if len(svc.payloads) != 2 {
		t.Fatalf("payloads = %d, want 2", len(svc.payloads))
	}
	p := svc.payloads[0]
	if !p.Silent {
		t.Error("expected silent payload when sound is off")
	}
	if len(p.Vibrate) == 0 {
		t.Error("expected vibration pattern when vibration is on")
	}
	if p.URL != "/subscriptions/7" {
		t.Errorf("url = %q", p.URL)
	}
}

func TestPushSenderReportsOtherFailures(t *testing.T) {
	devices := &fakeDevices{devices: []model.PushDevice{{ID: 1, Endpoint: "https://push.test/a"}}}
	svc := &fakePushService{failFor: map[string]error{"https://push.test/a": errors.New("503")}}
	s := NewPushSender(svc, devices, slog.Default())

	err := s.Send(context.Background(), 1, model.NotificationChannel{}, Message{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(devices.deleted) != 0 {
		t.Error("only expired devices are removed")
	}
}

type fakeUsers map[int64]*model.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	return f[id], nil
}

type fakeMailer struct {
	to, subject, body, path string
}

func (f *fakeMailer) SendReminder(_ context.Context, to, subject, body, path string) error {
	f.to, f.subject, f.body, f.path = to, subject, body, path
	return nil
}

func TestEmailSender(t *testing.T) {
	mailer := &fakeMailer{}
	s := NewEmailSender(mailer, fakeUsers{1: {ID: 1, Email: "alice@example.com"}})

	msg := Compose(notice(model.ReminderExpiration, 2, false))
	if err := s.Send(context.Background(), 1, model.NotificationChannel{}, msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mailer.to != "alice@example.com" {
		t.Errorf("to = %q", mailer.to)
	}
	if !strings.Contains(mailer.body, "expires in 2 days") {
		t.Errorf("body = %q", mailer.body)
	}

	if err := s.Send(context.Background(), 99, model.NotificationChannel{}, msg); err == nil {
		t.Error("expected error for unknown user")
	}
}

type fakePublisher struct {
	userID int64
	msg    websocket.Message
}

func (f *fakePublisher) SendToUser(userID int64, msg websocket.Message) int {
	f.userID, f.msg = userID, msg
	return 0
}

func TestInAppSender(t *testing.T) {
	pub := &fakePublisher{}
	s := NewInAppSender(pub)

	msg := Compose(notice(model.ReminderExpiration, 0, true))
	if err := s.Send(context.Background(), 1, model.NotificationChannel{Sound: true}, msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if pub.userID != 1 {
		t.Errorf("user = %d, want 1", pub.userID)
	}
	if pub.msg.Type != "reminder_overdue" || pub.msg.ID != 7 {
		t.Errorf("message = %+v", pub.msg)
	}
	if pub.msg.Extra["sound"] != true {
		t.Errorf("sound = %v, want true", pub.msg.Extra["sound"])
	}
}
