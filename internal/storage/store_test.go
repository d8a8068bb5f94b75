package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	logx "taskbot/pkg/logx"
)

func openTestFileStore(t *testing.T, path string) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return st
}

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("driver %q: expected (nil, nil), got (%v, %v)", d, st, err)
		}
	}
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestTokensRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stores := map[string]func() Store{
		"memory": NewMemory,
		"file":   func() Store { return openTestFileStore(t, filepath.Join(dir, "state.db")) },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			st := mk()
			defer st.Close()
			checkTokensRoundTrip(t, st)
			checkDedupRoundTrip(t, st)
		})
	}
}

func TestClosedStoresReject(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemory(),
		"file":   openTestFileStore(t, filepath.Join(t.TempDir(), "state.db")),
	}
	for name, st := range stores {
		t.Run(name, func(t *testing.T) {
			if err := st.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			checkClosedRejects(t, st)
		})
	}
}

func checkTokensRoundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	saved := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	want := Tokens{Token: "access", RefreshToken: "refresh", SavedAt: saved}
	if err := st.SaveTokens(ctx, "tg:42", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveTokens(ctx, "cli", Tokens{Token: "a", RefreshToken: "b", SavedAt: saved}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := st.LoadTokens(ctx, "tg:42")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	keys, err := st.SessionKeys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if diff := cmp.Diff([]string{"cli", "tg:42"}, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Session: "tg:42", Action: "complete", Target: "t1"}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if err := st.DeleteTokens(ctx, "tg:42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.LoadTokens(ctx, "tg:42"); ok {
		t.Fatalf("expected tokens to be deleted")
	}
}

func checkDedupRoundTrip(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	until := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	if _, ok, err := st.GetDedup(ctx, "reset:tg:42:DAILY:1"); err != nil || ok {
		t.Fatalf("unexpected dedup before put: ok=%v err=%v", ok, err)
	}
	if err := st.PutDedup(ctx, "reset:tg:42:DAILY:1", until); err != nil {
		t.Fatalf("put dedup: %v", err)
	}
	got, ok, err := st.GetDedup(ctx, "reset:tg:42:DAILY:1")
	if err != nil || !ok || !got.Equal(until) {
		t.Fatalf("dedup = %v ok=%v err=%v, want %v", got, ok, err, until)
	}
	later := until.Add(24 * time.Hour)
	if err := st.PutDedup(ctx, "reset:tg:42:DAILY:1", later); err != nil {
		t.Fatalf("overwrite dedup: %v", err)
	}
	if got, _, _ := st.GetDedup(ctx, "reset:tg:42:DAILY:1"); !got.Equal(later) {
		t.Fatalf("dedup after overwrite = %v, want %v", got, later)
	}
}

func checkClosedRejects(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	if err := st.SaveTokens(ctx, "cli", Tokens{Token: "x", RefreshToken: "y"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("SaveTokens: expected ErrClosed, got %v", err)
	}
	if _, _, err := st.LoadTokens(ctx, "cli"); !errors.Is(err, ErrClosed) {
		t.Fatalf("LoadTokens: expected ErrClosed, got %v", err)
	}
	if err := st.DeleteTokens(ctx, "cli"); !errors.Is(err, ErrClosed) {
		t.Fatalf("DeleteTokens: expected ErrClosed, got %v", err)
	}
	if _, err := st.SessionKeys(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("SessionKeys: expected ErrClosed, got %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Session: "cli", Action: "login"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("AppendAudit: expected ErrClosed, got %v", err)
	}
	if err := st.PutDedup(ctx, "k", time.Now().Add(time.Hour)); !errors.Is(err, ErrClosed) {
		t.Fatalf("PutDedup: expected ErrClosed, got %v", err)
	}
	if _, _, err := st.GetDedup(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("GetDedup: expected ErrClosed, got %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "taskbot.db")

	st := openTestFileStore(t, path)
	if err := st.SaveTokens(ctx, "cli", Tokens{Token: "t1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if err := st.PutDedup(ctx, "reset:DAILY:2024-01-02", until); err != nil {
		t.Fatalf("put dedup: %v", err)
	}
	if err := st.PutDedup(ctx, "expired", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("put dedup: %v", err)
	}
	if err := st.AppendAudit(ctx, AuditEntry{Session: "cli", Action: "login"}); err != nil {
		t.Fatalf("audit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st = openTestFileStore(t, path)
	defer st.Close()
	tok, ok, err := st.LoadTokens(ctx, "cli")
	if err != nil || !ok || tok.Token != "t1" || tok.RefreshToken != "r1" {
		t.Fatalf("reloaded tokens = %+v ok=%v err=%v", tok, ok, err)
	}
	got, ok, err := st.GetDedup(ctx, "reset:DAILY:2024-01-02")
	if err != nil || !ok || !got.Equal(until) {
		t.Fatalf("reloaded dedup = %v ok=%v err=%v, want %v", got, ok, err, until)
	}
	if _, ok, _ := st.GetDedup(ctx, "expired"); ok {
		t.Fatalf("expected expired dedup entry to be pruned on open")
	}
}
