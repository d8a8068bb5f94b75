package reminder

import (
	"context"
	"time"

	"taskbot/internal/recurrence"
)

// Reset is one reset boundary that has just passed.
type Reset struct {
	Cadence recurrence.Cadence
	At      time.Time
}

// Handler reacts to a reset. It runs under Config.Timeout.
type Handler func(ctx context.Context, r Reset) error

type Config struct {
	Enabled  bool
	Timeout  time.Duration
	Cadences []recurrence.Cadence // empty means all
}

type EntryInfo struct {
	Cadence recurrence.Cadence
	Spec    string
	Next    time.Time
	Prev    time.Time
}

type Snapshot struct {
	Enabled bool
	Running bool
	Entries []EntryInfo
	Fired   uint64
	Failed  uint64
}

// specs are evaluated in UTC regardless of the host zone.
var specs = map[recurrence.Cadence]string{
	recurrence.Daily:   "CRON_TZ=UTC 0 0 * * *",
	recurrence.Weekly:  "CRON_TZ=UTC 0 0 * * 3",
	recurrence.Monthly: "CRON_TZ=UTC 0 0 1 * *",
}

// Spec returns the cron spec for c.
func Spec(c recurrence.Cadence) (string, bool) {
	s, ok := specs[c]
	return s, ok
}
