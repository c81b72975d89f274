package config

import (
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "renewly.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "renewly.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.HousekeepingCron != "0 3 * * *" {
		t.Errorf("HousekeepingCron = %q", cfg.HousekeepingCron)
	}
	if cfg.HistoryRetention() != 365*24*time.Hour {
		t.Errorf("HistoryRetention = %v", cfg.HistoryRetention())
	}
	if cfg.Location != time.Local {
		t.Errorf("Location = %v, want Local", cfg.Location)
	}
	if cfg.PushSubscriber != "mailto:reminders@renewly.local" {
		t.Errorf("PushSubscriber = %q", cfg.PushSubscriber)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"RENEWLY_PORT":                   "9090",
		"RENEWLY_LOG_LEVEL":              "DEBUG",
		"RENEWLY_TIMEZONE":               "UTC",
		"RENEWLY_BASE_URL":               "https://renewly.example.com/",
		"RENEWLY_HISTORY_RETENTION_DAYS": "30",
		"RENEWLY_WS_ORIGINS":             "renewly.example.com, localhost:*",
		"RENEWLY_VAPID_PUBLIC_KEY":       "pub",
		"RENEWLY_VAPID_PRIVATE_KEY":      "priv",
	}))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Location != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location)
	}
	if cfg.BaseURL != "https://renewly.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.HistoryRetentionDays != 30 {
		t.Errorf("HistoryRetentionDays = %d, want 30", cfg.HistoryRetentionDays)
	}
	if len(cfg.WebSocketOrigins) != 2 || cfg.WebSocketOrigins[1] != "localhost:*" {
		t.Errorf("WebSocketOrigins = %v", cfg.WebSocketOrigins)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad timezone", map[string]string{"RENEWLY_TIMEZONE": "Mars/Olympus"}},
		{"bad retention", map[string]string{"RENEWLY_HISTORY_RETENTION_DAYS": "soon"}},
		{"zero retention", map[string]string{"RENEWLY_HISTORY_RETENTION_DAYS": "0"}},
		{"half vapid pair", map[string]string{"RENEWLY_VAPID_PUBLIC_KEY": "pub"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromEnv(envMap(tt.env)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
