package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskbot/internal/backend"
	"taskbot/internal/config"
	"taskbot/internal/reminder"
	"taskbot/internal/storage"
	logx "taskbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget returns the chat configured in telegram.group_log, or 0.
func logTarget(cfg *config.Config) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// MapBackendConfig is shared with the CLI.
func MapBackendConfig(cfg *config.Config) (backend.Config, error) {
	timeout, err := config.ParseDurationOrDefault("backend.timeout", cfg.Backend.Timeout, 15*time.Second)
	if err != nil {
		return backend.Config{}, err
	}
	return backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    timeout,
		RatePerSec: cfg.Backend.RatePerSec,
		UserAgent:  cfg.Backend.UserAgent,
	}, nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	timeout, err := config.ParseDurationOrDefault("reminder.timeout", cfg.Reminder.Timeout, 2*time.Minute)
	if err != nil {
		return reminder.Config{}, err
	}
	cadences, err := config.ReminderCadences(cfg.Reminder)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{Enabled: cfg.Reminder.Enabled, Timeout: timeout, Cadences: cadences}, nil
}

// MapStorageConfig returns enabled=false when no persistence is configured.
func MapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "memory", "mem":
		return storage.Config{Driver: "memory"}, true, nil
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
