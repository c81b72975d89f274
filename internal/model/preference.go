package model

import "time"

// Channel identifiers for reminder delivery.
const (
	ChannelPush  = "push"
	ChannelEmail = "email"
	ChannelInApp = "in_app"
)

var Channels = []string{ChannelPush, ChannelEmail, ChannelInApp}

type ReminderPreference struct {
	UserID      int64                 `json:"user_id"`
	Enabled     bool                  `json:"enabled"`
	AdvanceDays int                   `json:"advance_days"`
	Channels    []NotificationChannel `json:"channels"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

type NotificationChannel struct {
	Channel   string `json:"channel"`
	Enabled   bool   `json:"enabled"`
	Sound     bool   `json:"sound"`
	Vibration bool   `json:"vibration"`
}

// EnabledChannels returns the channels the user has switched on.
func (p ReminderPreference) EnabledChannels() []NotificationChannel {
	var out []NotificationChannel
	for _, c := range p.Channels {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}
