// Package view renders tasks, notes and reset timers as plain chat text.
// Every renderer takes the reference instant explicitly.
package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
)

type TaskRow struct {
	ID        string
	Title     string
	Cadence   recurrence.Cadence
	Available bool
	ResetsIn  string // countdown to the next reset; empty when available
	LastDone  string // "3 hours ago", or "never"
}

// Rows evaluates every task at now. Rows are grouped by cadence (daily,
// weekly, monthly, then unknown) and keep backend order within a group.
func Rows(tasks []backend.Task, now time.Time) []TaskRow {
	out := make([]TaskRow, 0, len(tasks))
	for _, t := range tasks {
		snap := t.Snapshot()
		r := TaskRow{
			ID:        t.ID,
			Title:     t.Title,
			Cadence:   snap.Cadence,
			Available: recurrence.IsAvailable(snap, now),
			LastDone:  "never",
		}
		if snap.LastCompletedAt != nil {
			r.LastDone = humanize.RelTime(*snap.LastCompletedAt, now, "ago", "from now")
		}
		if !r.Available && snap.Cadence.Valid() {
			r.ResetsIn = recurrence.Countdown(snap.Cadence, now)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return cadenceRank(out[i].Cadence) < cadenceRank(out[j].Cadence) })
	return out
}

func cadenceRank(c recurrence.Cadence) int {
	for i, k := range recurrence.Cadences {
		if c == k {
			return i
		}
	}
	return len(recurrence.Cadences)
}

func RenderTasks(tasks []backend.Task, now time.Time) string {
	if len(tasks) == 0 {
		return "📋 No tasks yet. Add one with /add daily <title>"
	}
	var b strings.Builder
	b.WriteString("📋 Tasks\n")
	var cur recurrence.Cadence = "-"
	for _, r := range Rows(tasks, now) {
		if r.Cadence != cur {
			cur = r.Cadence
			fmt.Fprintf(&b, "\n%s\n", cadenceHeading(cur))
		}
		if r.Available {
			fmt.Fprintf(&b, "  ⬜ %s [%s] (last: %s)\n", r.Title, r.ID, r.LastDone)
			continue
		}
		if r.ResetsIn == "" {
			fmt.Fprintf(&b, "  ❔ %s [%s]\n", r.Title, r.ID)
			continue
		}
		fmt.Fprintf(&b, "  ✅ %s [%s] (resets in %s)\n", r.Title, r.ID, r.ResetsIn)
	}
	return strings.TrimRight(b.String(), "\n")
}

func cadenceHeading(c recurrence.Cadence) string {
	switch c {
	case recurrence.Daily:
		return "☀️ Daily"
	case recurrence.Weekly:
		return "📅 Weekly"
	case recurrence.Monthly:
		return "🗓 Monthly"
	}
	return "❔ " + string(c)
}

// RenderResets lists the countdown to every cadence's next reset.
func RenderResets(now time.Time) string {
	var b strings.Builder
	b.WriteString("⏳ Next resets (UTC)\n")
	for _, c := range recurrence.Cadences {
		at := recurrence.NextReset(c, now)
		fmt.Fprintf(&b, "  • %s: in %s (%s)\n", c.Label(), recurrence.FormatCountdown(at, now), at.Format("Mon 2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderReset announces a reset boundary and the tasks still open after it.
func RenderReset(c recurrence.Cadence, at time.Time, available []backend.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔄 %s reset (%s UTC)\n", cadenceHeading(c), at.UTC().Format("2006-01-02 15:04"))
	if len(available) == 0 {
		b.WriteString("Nothing new to do.")
		return b.String()
	}
	b.WriteString("Still to do:\n")
	for _, t := range available {
		fmt.Fprintf(&b, "  ⬜ %s [%s]\n", t.Title, t.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderNotes(notes []backend.UserNote) string {
	if len(notes) == 0 {
		return "🗒 No notes."
	}
	var b strings.Builder
	b.WriteString("🗒 Notes\n")
	for _, n := range notes {
		fmt.Fprintf(&b, "\n• %s [%s]\n", n.Title, n.ID)
		if c := strings.TrimSpace(n.Contents); c != "" {
			b.WriteString(indent(c, "  "))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderGroups(groups []backend.Group) string {
	if len(groups) == 0 {
		return "👥 Not a member of any group."
	}
	var b strings.Builder
	b.WriteString("👥 Groups\n")
	for _, g := range groups {
		names := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			names = append(names, m.Username)
		}
		fmt.Fprintf(&b, "\n• %s [%s]\n", g.Name, g.ID)
		fmt.Fprintf(&b, "  members: %s\n", strings.Join(names, ", "))
		fmt.Fprintf(&b, "  notes: %d\n", len(g.Notes))
	}
	return strings.TrimRight(b.String(), "\n")
}

func RenderProfile(p backend.Profile, now time.Time) string {
	u := p.User
	joined := "unknown"
	if !u.CreatedAt.IsZero() {
		joined = humanize.RelTime(u.CreatedAt, now, "ago", "from now")
	}
	return fmt.Sprintf("👤 %s\n  • id: %s\n  • joined: %s\n  • tasks: %d | notes: %d | groups: %d",
		u.Username, u.ID, joined, len(u.Tasks), len(u.Notes), len(p.Groups))
}

func indent(s, pad string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}
