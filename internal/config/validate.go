package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"taskbot/internal/recurrence"
)

// Validate checks values the strict decoder cannot: durations, URLs and
// enumerations. It does not require a Telegram token, since the CLI reads
// the same file.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if raw := strings.TrimSpace(cfg.Backend.BaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("backend.base_url: invalid url %q", raw))
		}
	}
	if cfg.Backend.RatePerSec < 0 {
		errs = append(errs, errors.New("backend.rate_per_sec: must be >= 0"))
	}

	durations := []struct{ path, raw string }{
		{"backend.timeout", cfg.Backend.Timeout},
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"telegram.command_timeout", cfg.Telegram.CommandTimeout},
		{"reminder.timeout", cfg.Reminder.Timeout},
	}
	if cfg.Storage != nil {
		durations = append(durations, struct{ path, raw string }{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	if gl := strings.TrimSpace(cfg.Telegram.GroupLog); gl != "" {
		if _, err := strconv.ParseInt(gl, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("telegram.group_log: not a chat id: %q", gl))
		}
	}

	if _, err := ReminderCadences(cfg.Reminder); err != nil {
		errs = append(errs, err)
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "memory", "mem", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
	}
	return errors.Join(errs...)
}

// ReminderCadences parses reminder.cadences.
func ReminderCadences(rc ReminderConfig) ([]recurrence.Cadence, error) {
	out := make([]recurrence.Cadence, 0, len(rc.Cadences))
	for _, s := range rc.Cadences {
		c, ok := recurrence.ParseCadence(s)
		if !ok {
			return nil, fmt.Errorf("reminder.cadences: unknown cadence %q", s)
		}
		out = append(out, c)
	}
	return out, nil
}
