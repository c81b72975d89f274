package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/renewly/internal/model"
)

// DefaultAdvanceDays is how many days ahead a new user is reminded.
const DefaultAdvanceDays = 3

type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// ListUserIDsWithRemindersEnabled returns users whose reminder preference is on,
// in ascending id order.
func (s *PreferenceStore) ListUserIDsWithRemindersEnabled(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM reminder_preferences WHERE enabled = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list reminder users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetReminderPreference returns the user's preference with its channels, or
// nil if the user has none.
func (s *PreferenceStore) GetReminderPreference(ctx context.Context, userID int64) (*model.ReminderPreference, error) {
	var p model.ReminderPreference
	var enabledInt int
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, enabled, advance_days, updated_at FROM reminder_preferences WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &enabledInt, &p.AdvanceDays, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder preference: %w", err)
	}
	p.Enabled = enabledInt != 0

	channels, err := s.ListChannels(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Channels = channels
	return &p, nil
}

func (s *PreferenceStore) ListChannels(ctx context.Context, userID int64) ([]model.NotificationChannel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, enabled, sound, vibration FROM notification_channels
		 WHERE user_id = ? ORDER BY channel`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification channels: %w", err)
	}
	defer rows.Close()

	var channels []model.NotificationChannel
	for rows.Next() {
		var c model.NotificationChannel
		var enabled, sound, vibration int
		if err := rows.Scan(&c.Channel, &enabled, &sound, &vibration); err != nil {
			return nil, fmt.Errorf("scan notification channel: %w", err)
		}
		c.Enabled = enabled != 0
		c.Sound = sound != 0
		c.Vibration = vibration != 0
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

// SetReminderPreference upserts the preference and every channel passed in.
// Channels not mentioned keep their current settings.
func (s *PreferenceStore) SetReminderPreference(ctx context.Context, userID int64, enabled bool, advanceDays int, channels []model.NotificationChannel) (*model.ReminderPreference, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reminder_preferences (user_id, enabled, advance_days, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   enabled = excluded.enabled,
		   advance_days = excluded.advance_days,
		   updated_at = excluded.updated_at`,
		userID, boolInt(enabled), advanceDays,
	)
	if err != nil {
		return nil, fmt.Errorf("set reminder preference: %w", err)
	}

	for _, c := range channels {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notification_channels (user_id, channel, enabled, sound, vibration)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id, channel) DO UPDATE SET
			   enabled = excluded.enabled,
			   sound = excluded.sound,
			   vibration = excluded.vibration`,
			userID, c.Channel, boolInt(c.Enabled), boolInt(c.Sound), boolInt(c.Vibration),
		)
		if err != nil {
			return nil, fmt.Errorf("set notification channel %q: %w", c.Channel, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reminder preference: %w", err)
	}
	return s.GetReminderPreference(ctx, userID)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
