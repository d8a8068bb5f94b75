package view

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
)

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestRows(t *testing.T) {
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) // Wednesday
	tasks := []backend.Task{
		{ID: "m1", Title: "rent", TaskType: recurrence.Monthly, LastCompleted: at("2024-01-01T09:00:00Z")},
		{ID: "d1", Title: "water", TaskType: recurrence.Daily, LastCompleted: at("2024-01-03T07:00:00Z")},
		{ID: "x1", Title: "odd", TaskType: "YEARLY"},
		{ID: "d2", Title: "walk", TaskType: "daily"},
	}

	want := []TaskRow{
		{ID: "d1", Title: "water", Cadence: recurrence.Daily, ResetsIn: "14 hours", LastDone: "3 hours ago"},
		{ID: "d2", Title: "walk", Cadence: recurrence.Daily, Available: true, LastDone: "never"},
		{ID: "m1", Title: "rent", Cadence: recurrence.Monthly, ResetsIn: "28 days", LastDone: "2 days ago"},
		{ID: "x1", Title: "odd", Cadence: "YEARLY", Available: true, LastDone: "never"},
	}
	if diff := cmp.Diff(want, Rows(tasks, now)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTasks(t *testing.T) {
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	if got := RenderTasks(nil, now); !strings.Contains(got, "No tasks") {
		t.Fatalf("empty render = %q", got)
	}
	got := RenderTasks([]backend.Task{
		{ID: "w1", Title: "laundry", TaskType: recurrence.Weekly, LastCompleted: at("2024-01-03T08:00:00Z")},
		{ID: "d1", Title: "water", TaskType: recurrence.Daily},
	}, now)
	for _, want := range []string{"☀️ Daily", "⬜ water [d1]", "📅 Weekly", "✅ laundry [w1] (resets in 6 days)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("render missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "Daily") > strings.Index(got, "Weekly") {
		t.Fatalf("daily section must come first:\n%s", got)
	}
}

func TestRenderResets(t *testing.T) {
	now := time.Date(2024, 1, 31, 23, 59, 15, 0, time.UTC)
	got := RenderResets(now)
	for _, want := range []string{
		"daily: in 45 seconds (Thu 2024-02-01 00:00)",
		"weekly: in 6 days (Wed 2024-02-07 00:00)",
		"monthly: in 45 seconds (Thu 2024-02-01 00:00)",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("render missing %q:\n%s", want, got)
		}
	}
}

func TestRenderReset(t *testing.T) {
	boundary := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	got := RenderReset(recurrence.Weekly, boundary, []backend.Task{{ID: "w1", Title: "laundry"}})
	if !strings.HasPrefix(got, "🔄 📅 Weekly reset (2024-01-03 00:00 UTC)") || !strings.Contains(got, "⬜ laundry [w1]") {
		t.Fatalf("unexpected reset text:\n%s", got)
	}
	if got := RenderReset(recurrence.Daily, boundary, nil); !strings.HasSuffix(got, "Nothing new to do.") {
		t.Fatalf("unexpected empty reset text:\n%s", got)
	}
}

func TestRenderNotesAndGroups(t *testing.T) {
	notes := RenderNotes([]backend.UserNote{{ID: "n1", Title: "shopping", Contents: "milk\neggs"}})
	if !strings.Contains(notes, "• shopping [n1]\n  milk\n  eggs") {
		t.Fatalf("notes render:\n%s", notes)
	}
	groups := RenderGroups([]backend.Group{{
		ID: "g1", Name: "home",
		Members: []backend.GroupMember{{Username: "ana"}, {Username: "bo"}},
		Notes:   []backend.GroupNote{{ID: "gn1"}},
	}})
	for _, want := range []string{"• home [g1]", "members: ana, bo", "notes: 1"} {
		if !strings.Contains(groups, want) {
			t.Fatalf("groups render missing %q:\n%s", want, groups)
		}
	}
	if RenderGroups(nil) == "" || RenderNotes(nil) == "" {
		t.Fatalf("empty renders must not be blank")
	}
}
