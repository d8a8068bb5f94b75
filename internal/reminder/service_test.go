package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskbot/internal/recurrence"
	logx "taskbot/pkg/logx"
)

func TestCronEntriesMatchNextReset(t *testing.T) {
	s := New(Config{Enabled: true}, nil, logx.Nop())
	start := time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)
	for _, c := range recurrence.Cadences {
		for h := 0; h < 24*70; h += 7 {
			now := start.Add(time.Duration(h) * time.Hour)
			got, err := s.Next(c, now)
			if err != nil {
				t.Fatalf("Next(%s): %v", c, err)
			}
			if want := recurrence.NextReset(c, now); !got.Equal(want) {
				t.Fatalf("%s at %s: cron next %s, NextReset %s", c, now, got, want)
			}
		}
	}
}

func TestCronEntriesMatchNextResetAtBoundaries(t *testing.T) {
	s := New(Config{Enabled: true}, nil, logx.Nop())
	zone := time.FixedZone("UTC+7", 7*3600)
	cases := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 23, 59, 59, 999, time.UTC),
		time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 6, 30, 0, 0, zone),
	}
	for _, now := range cases {
		for _, c := range recurrence.Cadences {
			got, _ := s.Next(c, now)
			if want := recurrence.NextReset(c, now); !got.Equal(want) {
				t.Fatalf("%s at %s: cron next %s, NextReset %s", c, now, got, want)
			}
		}
	}
}

func TestNextUnknownCadence(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	if _, err := s.Next("YEARLY", time.Now()); err == nil {
		t.Fatalf("expected error for unknown cadence")
	}
}

func TestFireRunsHandlerWithTimeout(t *testing.T) {
	var got Reset
	var deadline bool
	h := func(ctx context.Context, r Reset) error {
		got = r
		_, deadline = ctx.Deadline()
		return nil
	}
	s := New(Config{Enabled: true, Timeout: time.Second}, h, logx.Nop())

	at := time.Date(2024, 1, 3, 7, 0, 0, 0, time.FixedZone("UTC+7", 7*3600))
	if err := s.Fire(context.Background(), recurrence.Weekly, at); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if got.Cadence != recurrence.Weekly || !got.At.Equal(at) || got.At.Location() != time.UTC {
		t.Fatalf("handler got %+v", got)
	}
	if !deadline {
		t.Fatalf("handler context must carry a deadline")
	}
	if err := s.Fire(context.Background(), "YEARLY", at); err == nil {
		t.Fatalf("expected error for unknown cadence")
	}
}

func TestFireCountsFailures(t *testing.T) {
	boom := errors.New("boom")
	s := New(Config{Enabled: true}, func(context.Context, Reset) error { return boom }, logx.Nop())
	if err := s.Fire(context.Background(), recurrence.Daily, time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	snap := s.Snapshot()
	if snap.Fired != 1 || snap.Failed != 1 {
		t.Fatalf("fired=%d failed=%d", snap.Fired, snap.Failed)
	}
}

func TestStartApplyStop(t *testing.T) {
	ctx := context.Background()
	s := New(Config{Enabled: true, Cadences: []recurrence.Cadence{recurrence.Weekly}}, nil, logx.Nop())
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Running || len(snap.Entries) != 1 || snap.Entries[0].Cadence != recurrence.Weekly {
		t.Fatalf("unexpected snapshot after start: %+v", snap)
	}
	if want := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC); !snap.Entries[0].Next.Equal(want) {
		t.Fatalf("weekly next = %s, want %s", snap.Entries[0].Next, want)
	}

	if err := s.Apply(ctx, Config{Enabled: true}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	snap = s.Snapshot()
	if len(snap.Entries) != 3 {
		t.Fatalf("expected all cadences after apply, got %d", len(snap.Entries))
	}
	for i, c := range recurrence.Cadences {
		if snap.Entries[i].Cadence != c {
			t.Fatalf("entry %d = %s, want %s", i, snap.Entries[i].Cadence, c)
		}
	}

	if err := s.Apply(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("Apply disable: %v", err)
	}
	if snap := s.Snapshot(); snap.Running || len(snap.Entries) != 0 {
		t.Fatalf("expected stopped service, got %+v", snap)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	s.Stop(stopCtx) // idempotent
}

func TestStartDisabledIsNoop(t *testing.T) {
	s := New(Config{Enabled: false}, nil, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Snapshot().Running {
		t.Fatalf("disabled service must not run")
	}
}
