package store

import (
	"context"
	"testing"

	"github.com/dukerupert/renewly/internal/model"
)

func TestSetReminderPreference(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	pref, err := ps.SetReminderPreference(ctx, u.ID, true, 7, []model.NotificationChannel{
		{Channel: model.ChannelEmail, Enabled: true},
	})
	if err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if pref.AdvanceDays != 7 {
		t.Errorf("advance_days = %d, want 7", pref.AdvanceDays)
	}

	var email, push *model.NotificationChannel
	for i := range pref.Channels {
		switch pref.Channels[i].Channel {
		case model.ChannelEmail:
			email = &pref.Channels[i]
		case model.ChannelPush:
			push = &pref.Channels[i]
		}
	}
	if email == nil || !email.Enabled {
		t.Error("expected email channel enabled")
	}
	if email != nil && email.Sound {
		t.Error("expected email sound off after explicit upsert")
	}
	if push == nil || !push.Enabled {
		t.Error("expected push channel untouched")
	}
}

func TestListUserIDsWithRemindersEnabled(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPreferenceStore(db)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	carol := createTestUser(t, db, "carol@example.com")

	if _, err := ps.SetReminderPreference(ctx, bob.ID, false, 3, nil); err != nil {
		t.Fatalf("disable bob: %v", err)
	}

	ids, err := ps.ListUserIDsWithRemindersEnabled(ctx)
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != alice.ID || ids[1] != carol.ID {
		t.Errorf("ids = %v, want [%d %d]", ids, alice.ID, carol.ID)
	}
}

func TestGetReminderPreferenceMissing(t *testing.T) {
	ps := NewPreferenceStore(setupTestDB(t))

	pref, err := ps.GetReminderPreference(context.Background(), 42)
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if pref != nil {
		t.Errorf("pref = %+v, want nil", pref)
	}
}

func TestEnabledChannels(t *testing.T) {
	p := model.ReminderPreference{Channels: []model.NotificationChannel{
		{Channel: model.ChannelPush, Enabled: true},
		{Channel: model.ChannelEmail, Enabled: false},
		{Channel: model.ChannelInApp, Enabled: true},
	}}

	got := p.EnabledChannels()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Channel != model.ChannelPush || got[1].Channel != model.ChannelInApp {
		t.Errorf("channels = %+v", got)
	}
}
