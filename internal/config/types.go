package config

type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Reminder ReminderConfig `json:"reminder"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

// BackendConfig points at the tasks/notes service.
//
// Example:
//
//	"backend": { "base_url": "http://localhost:5000", "timeout": "15s", "rate_per_sec": 5 }
type BackendConfig struct {
	BaseURL string `json:"base_url"`
	// Timeout is a Go duration string; default 15s.
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"` // 0 disables pacing
	UserAgent  string  `json:"user_agent,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs may run owner-only commands (/reminders, /fire).
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// GroupLog is the chat id (as a string) that receives Telegram log lines.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// CommandTimeout bounds a single command handler; default 30s.
	CommandTimeout string `json:"command_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ReminderConfig controls reset notifications.
//
// Cadences lists "daily", "weekly" and/or "monthly" (any case). Empty means
// all three.
type ReminderConfig struct {
	Enabled  bool     `json:"enabled"`
	Timeout  string   `json:"timeout,omitempty"` // Go duration string; default 2m
	Cadences []string `json:"cadences,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./taskbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
