package logx

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("expected zero logger")
	}
	l.Info("dropped", String("k", "v"))
	if l.Component("x").IsZero() {
		t.Fatalf("derived logger should carry fields")
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleTo(&buf, "warn").Component("test")
	l.Info("hidden")
	l.Warn("shown", Int("n", 3))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "comp=") {
		t.Fatalf("missing warn line or component: %q", out)
	}
	if !l.Enabled(LevelError) || l.Enabled(LevelDebug) {
		t.Fatalf("unexpected Enabled result")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" DEBUG ":  zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in, zerolog.InfoLevel); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFormatTelegramLine(t *testing.T) {
	line := []byte(`{"level":"warn","time":"x","message":"reset notify failed","session":"tg:1","comp":"reminder"}` + "\n")
	got := formatTelegramLine(line)
	want := "[WARN] reset notify failed\n- comp=reminder\n- session=tg:1"
	if got != want {
		t.Fatalf("formatTelegramLine = %q, want %q", got, want)
	}
	if got := formatTelegramLine([]byte("plain text")); got != "plain text" {
		t.Fatalf("non-JSON passthrough = %q", got)
	}
	long := strings.Repeat("a", telegramMaxMessage+50)
	if got := formatTelegramLine([]byte(long)); len(got) != telegramMaxMessage || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation to %d, got %d", telegramMaxMessage, len(got))
	}
}
