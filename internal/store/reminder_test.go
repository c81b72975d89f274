package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/renewly/internal/model"
)

func setupReminderTest(t *testing.T) (*ReminderStore, *model.User, *model.Subscription) {
	t.Helper()
	db := setupTestDB(t)
	u := createTestUser(t, db, "alice@example.com")
	sub, err := NewSubscriptionStore(db).Create(context.Background(), newTestSubscription(u.ID, "Netflix", date(2026, 3, 15)))
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return NewReminderStore(db), u, sub
}

func sentEntry(u *model.User, sub *model.Subscription) model.ReminderHistoryEntry {
	return model.ReminderHistoryEntry{
		UserID:         u.ID,
		SubscriptionID: sub.ID,
		Type:           model.ReminderRenewal,
		ReminderDate:   sub.RenewalDate,
	}
}

func TestReminderCreateSentAndFindPending(t *testing.T) {
	rs, u, sub := setupReminderTest(t)
	ctx := context.Background()

	pending, err := rs.FindPending(ctx, sub.ID, sub.RenewalDate)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if pending != nil {
		t.Fatal("expected no pending reminder")
	}

	created, err := rs.CreateSent(ctx, sentEntry(u, sub))
	if err != nil {
		t.Fatalf("create sent: %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.Status != model.ReminderSent {
		t.Errorf("status = %q, want %q", created.Status, model.ReminderSent)
	}
	if !created.ReminderDate.Equal(sub.RenewalDate) {
		t.Errorf("reminder_date = %v, want %v", created.ReminderDate, sub.RenewalDate)
	}

	pending, err = rs.FindPending(ctx, sub.ID, sub.RenewalDate)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	if pending == nil || pending.ID != created.ID {
		t.Errorf("pending = %+v, want id %s", pending, created.ID)
	}

	// A different renewal date is a different cycle.
	other, _ := rs.FindPending(ctx, sub.ID, sub.RenewalDate.AddDate(0, 1, 0))
	if other != nil {
		t.Error("expected no pending reminder for next cycle")
	}
}

func TestReminderCreateSentIsIdempotent(t *testing.T) {
	rs, u, sub := setupReminderTest(t)
	ctx := context.Background()

	if _, err := rs.CreateSent(ctx, sentEntry(u, sub)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := rs.CreateSent(ctx, sentEntry(u, sub))
	if !errors.Is(err, ErrReminderExists) {
		t.Fatalf("second create err = %v, want ErrReminderExists", err)
	}

	entries, _ := rs.ListByUser(ctx, u.ID, sub.ID, 0)
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestReminderResolvedEntryDoesNotBlockNewOne(t *testing.T) {
	rs, u, sub := setupReminderTest(t)
	ctx := context.Background()

	first, _ := rs.CreateSent(ctx, sentEntry(u, sub))
	if _, err := rs.UpdateStatus(ctx, first.ID, u.ID, model.ReminderDismissed); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	pending, _ := rs.FindPending(ctx, sub.ID, sub.RenewalDate)
	if pending != nil {
		t.Error("dismissed reminder must not count as pending")
	}
	if _, err := rs.CreateSent(ctx, sentEntry(u, sub)); err != nil {
		t.Fatalf("create after dismiss: %v", err)
	}
}

func TestReminderCancelPending(t *testing.T) {
	rs, u, sub := setupReminderTest(t)
	ctx := context.Background()

	viewed, _ := rs.CreateSent(ctx, sentEntry(u, sub))
	rs.UpdateStatus(ctx, viewed.ID, u.ID, model.ReminderViewed)
	rs.CreateSent(ctx, sentEntry(u, sub))

	n, err := rs.CancelPending(ctx, sub.ID)
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if n != 1 {
		t.Errorf("cancelled = %d, want 1", n)
	}

	entries, _ := rs.ListByUser(ctx, u.ID, 0, 0)
	if len(entries) != 1 || entries[0].Status != model.ReminderViewed {
		t.Errorf("entries = %+v, want only the viewed one", entries)
	}
}

func TestReminderUpdateStatusRejectsSent(t *testing.T) {
	rs, u, sub := setupReminderTest(t)
	ctx := context.Background()

	e, _ := rs.CreateSent(ctx, sentEntry(u, sub))
	if _, err := rs.UpdateStatus(ctx, e.ID, u.ID, model.ReminderSent); err == nil {
		t.Fatal("expected error moving back to sent")
	}
}

func TestReminderPurgeResolved(t *testing.T) {
	rs, u, sub := setupReminderTest(t)
	ctx := context.Background()

	old, _ := rs.CreateSent(ctx, sentEntry(u, sub))
	rs.UpdateStatus(ctx, old.ID, u.ID, model.ReminderViewed)
	pending, _ := rs.CreateSent(ctx, sentEntry(u, sub))

	// Nothing is older than an hour ago.
	n, err := rs.PurgeResolved(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 0 {
		t.Errorf("purged = %d, want 0", n)
	}

	n, err = rs.PurgeResolved(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	still, _ := rs.GetByID(ctx, pending.ID, u.ID)
	if still == nil {
		t.Error("pending reminder must never be purged")
	}
}

func TestReminderCreateSentRejectsInvalidType(t *testing.T) {
	rs, u, sub := setupReminderTest(t)

	entry := sentEntry(u, sub)
	entry.Type = "bogus"
	_, err := rs.CreateSent(context.Background(), entry)
	if err == nil {
		t.Fatal("expected error for invalid reminder type")
	}
	if errors.Is(err, ErrReminderExists) {
		t.Errorf("err = %v, must not be ErrReminderExists", err)
	}
}

func TestReminderCreateSentReportsConstraintErrors(t *testing.T) {
	rs, u, sub := setupReminderTest(t)

	entry := sentEntry(u, sub)
	entry.SubscriptionID = sub.ID + 1000
	_, err := rs.CreateSent(context.Background(), entry)
	if err == nil {
		t.Fatal("expected foreign key error for unknown subscription")
	}
	if errors.Is(err, ErrReminderExists) {
		t.Errorf("err = %v, must not be ErrReminderExists", err)
	}
}
