package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
)

type fakeBackend struct {
	mu    sync.Mutex
	tasks []backend.Task
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/login" {
		var c backend.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "pw" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(backend.TokenPair{Token: "tok", RefreshToken: "ref"})
		return
	}
	if r.URL.Path == "/refresh-token" {
		_ = json.NewEncoder(w).Encode(backend.TokenPair{Token: "tok", RefreshToken: "ref"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		http.Error(w, "no", http.StatusUnauthorized)
		return
	}
	switch {
	case r.URL.Path == "/users" && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(backend.Profile{User: backend.User{ID: "u1", Username: "ana", Tasks: f.tasks}})
	case strings.HasPrefix(r.URL.Path, "/users/tasks/") && r.Method == http.MethodPut:
		id := strings.TrimPrefix(r.URL.Path, "/users/tasks/")
		var u backend.TaskUpdate
		_ = json.NewDecoder(r.Body).Decode(&u)
		for i := range f.tasks {
			if f.tasks[i].ID == id {
				f.tasks[i].LastCompleted = u.LastCompleted
				_ = json.NewEncoder(w).Encode(f.tasks[i])
				return
			}
		}
		http.NotFound(w, r)
	default:
		http.Error(w, "unexpected", http.StatusTeapot)
	}
}

type harness struct {
	url   string
	dir   string
	store string
}

func (h harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	base := []string{"--config", filepath.Join(h.dir, "missing.json"), "--base-url", h.url, "--store", h.store}
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func newHarness(t *testing.T) harness {
	t.Helper()
	fb := &fakeBackend{tasks: []backend.Task{
		{ID: "a", Title: "water plants", TaskType: recurrence.Daily},
	}}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	return harness{url: srv.URL, dir: dir, store: filepath.Join(dir, "taskctl")}
}

func TestLoginTasksDone(t *testing.T) {
	h := newHarness(t)

	if _, err := h.run(t, "tasks"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("tasks before login: %v", err)
	}
	if _, err := h.run(t, "login", "ana", "--password", "wrong"); err == nil {
		t.Fatal("login with a wrong password should fail")
	}

	out, err := h.run(t, "login", "ana", "--password", "pw")
	if err != nil || !strings.Contains(out, "Logged in as ana.") {
		t.Fatalf("login: out=%q err=%v", out, err)
	}

	out, err = h.run(t, "tasks")
	if err != nil || !strings.Contains(out, "⬜ water plants [a]") {
		t.Fatalf("tasks: out=%q err=%v", out, err)
	}

	out, err = h.run(t, "done", "a")
	if err != nil || !strings.Contains(out, "Done: water plants.") {
		t.Fatalf("done: out=%q err=%v", out, err)
	}
	if _, err = h.run(t, "done", "a"); err == nil || !strings.Contains(err.Error(), "already done") {
		t.Fatalf("second done: %v", err)
	}
	if _, err = h.run(t, "done", "zzz"); err == nil || !strings.Contains(err.Error(), "task not found") {
		t.Fatalf("unknown task: %v", err)
	}

	if out, err = h.run(t, "logout"); err != nil || !strings.Contains(out, "Logged out.") {
		t.Fatalf("logout: out=%q err=%v", out, err)
	}
	if _, err := h.run(t, "whoami"); err == nil {
		t.Fatal("whoami after logout should fail")
	}
}

func TestAddRejectsUnknownCadence(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "add", "yearly", "taxes"); err == nil || !strings.Contains(err.Error(), `unknown cadence "yearly"`) {
		t.Fatalf("add: %v", err)
	}
}

func TestResetsNeedsNoLogin(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(t, "resets")
	if err != nil {
		t.Fatalf("resets: %v", err)
	}
	for _, c := range recurrence.Cadences {
		if !strings.Contains(out, c.Label()+": in ") {
			t.Fatalf("resets output missing %s:\n%s", c.Label(), out)
		}
	}
}
