package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"taskbot/internal/recurrence"
)

const sampleYAML = `
backend:
  base_url: http://localhost:5000
  timeout: 10s
  rate_per_sec: 5
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: 10s
logging:
  level: debug
  console: true
  file: { enabled: false, path: "" }
  telegram: { enabled: false, thread_id: 0, min_level: warn, rate_per_sec: 1 }
reminder:
  enabled: true
  cadences: [daily, WEEKLY]
storage:
  driver: file
  path: ./store
`

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("taskbot.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := &Config{
		Backend:  BackendConfig{BaseURL: "http://localhost:5000", Timeout: "10s", RatePerSec: 5},
		Telegram: TelegramConfig{Token: "123:abc", OwnerUserIDs: []int64{42}, PollTimeout: "10s"},
		Logging: LoggingConfig{
			Level:    "debug",
			Console:  true,
			Telegram: LoggingTelegram{MinLevel: "warn", RatePerSec: 1},
		},
		Reminder: ReminderConfig{Enabled: true, Cadences: []string{"daily", "WEEKLY"}},
		Storage:  &StorageConfig{Driver: "file", Path: "./store"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDecodeEmptyYAML(t *testing.T) {
	cfg, err := Decode("empty.yaml", []byte("# nothing yet\n"))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(&Config{}, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIsStrict(t *testing.T) {
	tests := []struct {
		name, file, data string
	}{
		{"unknown json field", "c.json", `{"backend":{"base_url":"http://x","bogus":1}}`},
		{"unknown yaml section", "c.yml", "plugins: {}\n"},
		{"trailing json", "c.json", `{"backend":{}} {"backend":{}}`},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.file, []byte(tt.data)); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"ok empty", Config{}, ""},
		{"bad url", Config{Backend: BackendConfig{BaseURL: "localhost"}}, "backend.base_url"},
		{"bad duration", Config{Reminder: ReminderConfig{Timeout: "soon"}}, "reminder.timeout"},
		{"negative duration", Config{Telegram: TelegramConfig{PollTimeout: "-1s"}}, "telegram.poll_timeout"},
		{"bad cadence", Config{Reminder: ReminderConfig{Cadences: []string{"yearly"}}}, "unknown cadence"},
		{"bad group log", Config{Telegram: TelegramConfig{GroupLog: "@chan"}}, "telegram.group_log"},
		{"bad driver", Config{Storage: &StorageConfig{Driver: "redis"}}, "storage.driver"},
		{"bad rate", Config{Backend: BackendConfig{RatePerSec: -1}}, "rate_per_sec"},
	}
	for _, tt := range tests {
		err := Validate(&tt.cfg)
		if tt.want == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestReminderCadences(t *testing.T) {
	got, err := ReminderCadences(ReminderConfig{Cadences: []string{"monthly", "Daily"}})
	if err != nil {
		t.Fatalf("ReminderCadences: %v", err)
	}
	if diff := cmp.Diff([]recurrence.Cadence{recurrence.Monthly, recurrence.Daily}, got); diff != "" {
		t.Fatalf("cadences mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	if err != nil || d != 3*time.Second {
		t.Fatalf("default: d=%v err=%v", d, err)
	}
	d, err = ParseDurationOrDefault("x", " 1m ", 3*time.Second)
	if err != nil || d != time.Minute {
		t.Fatalf("explicit: d=%v err=%v", d, err)
	}
	d, err = ParseDurationField("x", "45")
	if err != nil || d != 45*time.Second {
		t.Fatalf("seconds: d=%v err=%v", d, err)
	}
	for _, bad := range []string{"1 minute", "-5s", "-3"} {
		if _, err := ParseDurationField("x", bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	old := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "info"}}
	cur := &Config{Telegram: TelegramConfig{Token: "a"}, Logging: LoggingConfig{Level: "debug"}, Reminder: ReminderConfig{Enabled: true}}

	changed, attrs := SummarizeConfigChange(old, cur)
	if diff := cmp.Diff([]string{"logging", "reminder"}, changed); diff != "" {
		t.Fatalf("changed mismatch (-want +got):\n%s", diff)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}
	if RequiresRestart(changed) {
		t.Fatalf("logging/reminder changes are hot-reloadable")
	}

	cur.Telegram.Token = "b"
	changed, _ = SummarizeConfigChange(old, cur)
	if !RequiresRestart(changed) {
		t.Fatalf("token change requires restart, changed=%v", changed)
	}
}

func TestManagerReloadPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskbot.json")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(s), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(`{"logging":{"level":"info"}}`)

	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)
	ctx := context.Background()

	if m.reload(ctx) {
		t.Fatalf("unchanged content must not publish")
	}

	write(`{"logging":{"level":"debug"}}`)
	if !m.reload(ctx) {
		t.Fatalf("changed content must publish")
	}
	select {
	case got := <-ch:
		if got.Logging.Level != "debug" {
			t.Fatalf("published level %q", got.Logging.Level)
		}
	default:
		t.Fatalf("nothing published")
	}

	m.SetValidator(func(context.Context, *Config) error { return os.ErrInvalid })
	write(`{"logging":{"level":"warn"}}`)
	if m.reload(ctx) {
		t.Fatalf("validator rejection must not publish")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("rejected config must not be committed")
	}

	write(`{"logging":{"level":`)
	if m.reload(ctx) {
		t.Fatalf("broken file must not publish")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
}

func TestWatchPublishesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskbot.json")
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Watch: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("Watch did not return after cancel")
		}
	}()

	// The watcher registers asynchronously; keep rewriting until it sees a
	// write. The interval must exceed the reload debounce.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(2 * reloadDebounce)
	defer tick.Stop()
	for {
		select {
		case got := <-ch:
			if got.Logging.Level != "debug" {
				t.Fatalf("published level %q", got.Logging.Level)
			}
			if m.Get().Logging.Level != "debug" {
				t.Fatalf("published config not committed")
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatalf("no config published after file change")
		}
	}
}
