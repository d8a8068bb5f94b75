package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"taskbot/internal/config"
	"taskbot/internal/recurrence"
	"taskbot/internal/reminder"
	"taskbot/internal/storage"
)

func TestMapStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		in      *config.StorageConfig
		want    storage.Config
		enabled bool
		wantErr bool
	}{
		{name: "absent"},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file", in: &config.StorageConfig{Driver: "File", Path: " ./data/bot "}, want: storage.Config{Driver: "file", Path: "./data/bot"}, enabled: true},
		{name: "sqlite default busy", in: &config.StorageConfig{Driver: "sqlite", Path: "bot.db"}, want: storage.Config{Driver: "sqlite", Path: "bot.db", BusyTimeout: time.Second}, enabled: true},
		{name: "sqlite busy", in: &config.StorageConfig{Driver: "sqlite3", Path: "bot.db", BusyTimeout: "3s"}, want: storage.Config{Driver: "sqlite3", Path: "bot.db", BusyTimeout: 3 * time.Second}, enabled: true},
		{name: "sqlite without path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "unknown", in: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, enabled, err := MapStorageConfig(&config.Config{Storage: tc.in})
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if enabled != tc.enabled {
				t.Fatalf("enabled = %v, want %v", enabled, tc.enabled)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("config (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapReminderConfig(t *testing.T) {
	got, err := mapReminderConfig(&config.Config{Reminder: config.ReminderConfig{Enabled: true, Cadences: []string{"daily", "MONTHLY"}}})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	want := reminder.Config{Enabled: true, Timeout: 2 * time.Minute, Cadences: []recurrence.Cadence{recurrence.Daily, recurrence.Monthly}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("reminder (-want +got):\n%s", diff)
	}
	if _, err := mapReminderConfig(&config.Config{Reminder: config.ReminderConfig{Cadences: []string{"hourly"}}}); err == nil {
		t.Fatal("expected error for unknown cadence")
	}
}

func TestMapBackendConfig(t *testing.T) {
	got, err := MapBackendConfig(&config.Config{Backend: config.BackendConfig{BaseURL: "http://api:5000", RatePerSec: 2}})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if got.Timeout != 15*time.Second || got.BaseURL != "http://api:5000" || got.RatePerSec != 2 {
		t.Fatalf("backend config = %+v", got)
	}
	if _, err := MapBackendConfig(&config.Config{Backend: config.BackendConfig{Timeout: "soon"}}); err == nil {
		t.Fatal("expected error for bad timeout")
	}
}

func TestLogTarget(t *testing.T) {
	if got := logTarget(&config.Config{Telegram: config.TelegramConfig{GroupLog: " -100123 "}}); got != -100123 {
		t.Fatalf("logTarget = %d", got)
	}
	if got := logTarget(&config.Config{}); got != 0 {
		t.Fatalf("empty logTarget = %d", got)
	}
}
