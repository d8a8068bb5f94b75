package recurrence

import (
	"strings"
	"time"
)

// Cadence is the recurrence class of a task.
//
// The string values match the backend's taskType field.
type Cadence string

const (
	Daily   Cadence = "DAILY"
	Weekly  Cadence = "WEEKLY"
	Monthly Cadence = "MONTHLY"
)

// Cadences lists every valid cadence in display order.
var Cadences = []Cadence{Daily, Weekly, Monthly}

// Valid reports whether c is one of the known cadences.
func (c Cadence) Valid() bool {
	switch c {
	case Daily, Weekly, Monthly:
		return true
	default:
		return false
	}
}

// Label is the lower-case human name ("daily", "weekly", "monthly").
func (c Cadence) Label() string { return strings.ToLower(string(c)) }

func (c Cadence) String() string { return string(c) }

// ParseCadence accepts any case and surrounding whitespace.
func ParseCadence(s string) (Cadence, bool) {
	c := Cadence(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Snapshot is the minimal read-only view of a task needed here.
// LastCompletedAt is nil until the task has been completed once.
type Snapshot struct {
	Cadence         Cadence
	LastCompletedAt *time.Time
}

// ---- UTC calendar helpers ----

// startOfDay returns UTC midnight of t's UTC calendar date.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func addDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysBetween counts whole days between two UTC midnights.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// WeekOf numbers weeks starting on Monday.
//
// The Monday on or before t's UTC date is located, then counted from January 1
// of that Monday's year: ceil((days+1)/7). The year is not part of the result,
// so week 1 of one year equals week 1 of the next.
func WeekOf(t time.Time) int {
	day := startOfDay(t)
	// time.Weekday: Sunday=0 .. Saturday=6; shift so Monday=0.
	back := (int(day.Weekday()) + 6) % 7
	monday := addDays(day, -back)
	anchor := time.Date(monday.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	days := daysBetween(anchor, monday)
	return (days + 1 + 6) / 7
}
