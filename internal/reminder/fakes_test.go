package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/renewly/internal/model"
	"github.com/dukerupert/renewly/internal/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// today is day 0 in every scenario.
var today = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func day(n int) time.Time {
	return time.Date(2026, 3, 10+n, 0, 0, 0, 0, time.UTC)
}

type fakeSubscriptions struct {
	mu       sync.Mutex
	byUser   map[int64][]*model.Subscription
	failFor  map[int64]error
	updates  []int64
	updateFn func(id int64) error
}

func newFakeSubscriptions() *fakeSubscriptions {
	return &fakeSubscriptions{byUser: map[int64][]*model.Subscription{}, failFor: map[int64]error{}}
}

func (f *fakeSubscriptions) add(sub model.Subscription) *model.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.Status == "" {
		sub.Status = model.SubscriptionActive
	}
	s := &sub
	f.byUser[sub.UserID] = append(f.byUser[sub.UserID], s)
	return s
}

func (f *fakeSubscriptions) remove(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for uid, subs := range f.byUser {
		kept := subs[:0]
		for _, s := range subs {
			if s.ID != id {
				kept = append(kept, s)
			}
		}
		f.byUser[uid] = kept
	}
}

func (f *fakeSubscriptions) ListActiveByUser(_ context.Context, userID int64) ([]model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	var out []model.Subscription
	for _, s := range f.byUser[userID] {
		if s.Status != model.SubscriptionCancelled {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubscriptions) UpdateStatus(_ context.Context, id int64, status model.SubscriptionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateFn != nil {
		if err := f.updateFn(id); err != nil {
			return err
		}
	}
	for _, subs := range f.byUser {
		for _, s := range subs {
			if s.ID == id {
				s.Status = status
				f.updates = append(f.updates, id)
				return nil
			}
		}
	}
	return fmt.Errorf("subscription %d not found", id)
}

func (f *fakeSubscriptions) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakePreferences struct {
	mu        sync.Mutex
	prefs     map[int64]*model.ReminderPreference
	listCalls int
}

func newFakePreferences() *fakePreferences {
	return &fakePreferences{prefs: map[int64]*model.ReminderPreference{}}
}

func (f *fakePreferences) set(userID int64, enabled bool, advanceDays int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[userID] = &model.ReminderPreference{UserID: userID, Enabled: enabled, AdvanceDays: advanceDays}
}

// ListUserIDsWithRemindersEnabled returns every known user so the scheduler's
// own enabled check is exercised too.
func (f *fakePreferences) ListUserIDsWithRemindersEnabled(context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var ids []int64
	for id := range f.prefs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakePreferences) GetReminderPreference(_ context.Context, userID int64) (*model.ReminderPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePreferences) sweeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []model.ReminderHistoryEntry
	seq     int
	writes  int
	findErr error
	// hidePending makes FindPending miss so CreateSent sees the conflict.
	hidePending bool
}

func (f *fakeLedger) FindPending(_ context.Context, subID int64, renewalDate time.Time) (*model.ReminderHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.hidePending {
		return nil, nil
	}
	for _, e := range f.entries {
		if e.SubscriptionID == subID && e.ReminderDate.Equal(renewalDate) && e.Status == model.ReminderSent {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CreateSent(_ context.Context, entry model.ReminderHistoryEntry) (*model.ReminderHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.SubscriptionID == entry.SubscriptionID && e.ReminderDate.Equal(entry.ReminderDate) && e.Status == model.ReminderSent {
			return nil, store.ErrReminderExists
		}
	}
	f.seq++
	f.writes++
	entry.ID = fmt.Sprintf("r-%d", f.seq)
	entry.Status = model.ReminderSent
	f.entries = append(f.entries, entry)
	return &entry, nil
}

func (f *fakeLedger) CancelPending(_ context.Context, subID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.SubscriptionID == subID && e.Status == model.ReminderSent {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	if n > 0 {
		f.writes++
	}
	return n, nil
}

func (f *fakeLedger) pending(subID int64) []model.ReminderHistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ReminderHistoryEntry
	for _, e := range f.entries {
		if e.SubscriptionID == subID && e.Status == model.ReminderSent {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeLedger) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []model.ReminderNotice
	err     error
	// block, when set, is waited on inside Notify after entered is signalled.
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeNotifier) Notify(_ context.Context, n model.ReminderNotice) error {
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
	return f.err
}

func (f *fakeNotifier) calls() []model.ReminderNotice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ReminderNotice(nil), f.notices...)
}

type harness struct {
	subs     *fakeSubscriptions
	prefs    *fakePreferences
	ledger   *fakeLedger
	notifier *fakeNotifier
	sched    *Scheduler
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		subs:     newFakeSubscriptions(),
		prefs:    newFakePreferences(),
		ledger:   &fakeLedger{},
		notifier: &fakeNotifier{},
	}
	opts = append([]Option{WithClock(fixedClock{today}), WithLocation(time.UTC)}, opts...)
	sched, err := New(Deps{
		Subscriptions: h.subs,
		Preferences:   h.prefs,
		Ledger:        h.ledger,
		Notifier:      h.notifier,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, opts...)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	h.sched = sched
	return h
}

var errBoom = errors.New("boom")
