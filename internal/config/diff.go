package config

import (
	"reflect"
	"strings"

	logx "taskbot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging. Secrets (the bot token) are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Backend != newCfg.Backend {
		changed = append(changed, "backend")
		attrs = append(attrs,
			logx.String("backend.base_url", strings.TrimSpace(newCfg.Backend.BaseURL)),
			logx.String("backend.timeout", strings.TrimSpace(newCfg.Backend.Timeout)),
			logx.Any("backend.rate_per_sec", newCfg.Backend.RatePerSec),
		)
	}

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		strings.TrimSpace(oldCfg.Telegram.CommandTimeout) != strings.TrimSpace(newCfg.Telegram.CommandTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Reminder.Enabled != newCfg.Reminder.Enabled ||
		strings.TrimSpace(oldCfg.Reminder.Timeout) != strings.TrimSpace(newCfg.Reminder.Timeout) ||
		!reflect.DeepEqual(oldCfg.Reminder.Cadences, newCfg.Reminder.Cadences) {
		changed = append(changed, "reminder")
		attrs = append(attrs,
			logx.Bool("reminder.enabled", newCfg.Reminder.Enabled),
			logx.Strings("reminder.cadences", newCfg.Reminder.Cadences),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		var st StorageConfig
		if newCfg.Storage != nil {
			st = *newCfg.Storage
		}
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(st.Driver)),
			logx.String("storage.path", strings.TrimSpace(st.Path)),
		)
	}

	return changed, attrs
}

// RequiresRestart reports whether a change touches settings that are only
// read at startup (everything except logging and reminder).
func RequiresRestart(changed []string) bool {
	for _, c := range changed {
		switch c {
		case "logging", "reminder":
		default:
			return true
		}
	}
	return false
}
