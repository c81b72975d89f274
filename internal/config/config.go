package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration, read from the environment.
type Config struct {
	Port     string
	DBPath   string
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string
	Location  *time.Location

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string

	PostmarkToken string
	EmailFrom     string
	BaseURL       string

	// WebSocketOrigins are host patterns allowed to open /ws cross-origin.
	WebSocketOrigins []string

	HousekeepingCron     string
	HistoryRetentionDays int
}

// Load reads a .env file if present and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:             get("RENEWLY_PORT", "8080"),
		DBPath:           get("RENEWLY_DB_PATH", "renewly.db"),
		LogLevel:         strings.ToLower(get("RENEWLY_LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(get("RENEWLY_LOG_FORMAT", "text")),
		VAPIDPublicKey:   get("RENEWLY_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:  get("RENEWLY_VAPID_PRIVATE_KEY", ""),
		PostmarkToken:    get("RENEWLY_POSTMARK_TOKEN", ""),
		EmailFrom:        get("RENEWLY_EMAIL_FROM", "reminders@renewly.local"),
		BaseURL:          strings.TrimRight(get("RENEWLY_BASE_URL", "http://localhost:8080"), "/"),
		HousekeepingCron: get("RENEWLY_HOUSEKEEPING_CRON", "0 3 * * *"),
	}
	cfg.PushSubscriber = get("RENEWLY_PUSH_SUBSCRIBER", "mailto:"+cfg.EmailFrom)

	if origins := get("RENEWLY_WS_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.WebSocketOrigins = append(cfg.WebSocketOrigins, o)
			}
		}
	}

	tz := get("RENEWLY_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid RENEWLY_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	days, err := strconv.Atoi(get("RENEWLY_HISTORY_RETENTION_DAYS", "365"))
	if err != nil || days < 1 {
		return nil, fmt.Errorf("invalid RENEWLY_HISTORY_RETENTION_DAYS: must be a positive integer")
	}
	cfg.HistoryRetentionDays = days

	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return nil, fmt.Errorf("RENEWLY_VAPID_PUBLIC_KEY and RENEWLY_VAPID_PRIVATE_KEY must be set together")
	}

	return cfg, nil
}

// HistoryRetention is the age after which resolved reminders are purged.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}
