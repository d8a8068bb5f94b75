package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"taskbot/internal/backend"
	"taskbot/internal/storage"
	logx "taskbot/pkg/logx"
)

// fakeBackend issues numbered tokens and accepts only the latest one.
type fakeBackend struct {
	mu          sync.Mutex
	issued      int
	valid       map[string]bool
	refresh     map[string]bool
	profileFail bool
	refreshHits int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{valid: map[string]bool{}, refresh: map[string]bool{}}
}

func (f *fakeBackend) issue(w http.ResponseWriter) {
	f.issued++
	n := strings.Repeat("x", f.issued)
	tp := backend.TokenPair{Token: "tok" + n, RefreshToken: "ref" + n}
	f.valid[tp.Token] = true
	f.refresh[tp.RefreshToken] = true
	_ = json.NewEncoder(w).Encode(tp)
}

// expire invalidates every access token issued so far.
func (f *fakeBackend) expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = map[string]bool{}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/login":
		var c backend.Credentials
		_ = json.NewDecoder(r.Body).Decode(&c)
		if c.Password != "secret" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}
		f.issue(w)
	case "/refresh-token":
		f.refreshHits++
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !f.refresh[body.RefreshToken] {
			http.Error(w, "bad refresh token", http.StatusUnauthorized)
			return
		}
		delete(f.refresh, body.RefreshToken)
		f.issue(w)
	case "/users":
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !f.valid[tok] {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		if f.profileFail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"u1","username":"ana"},"groups":[]}`))
	default:
		http.NotFound(w, r)
	}
}

func setup(t *testing.T) (*fakeBackend, *backend.Client, storage.Store) {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, backend.New(backend.Config{BaseURL: srv.URL}, logx.Nop()), storage.NewMemory()
}

func TestLoginPersistsTokensAndProfile(t *testing.T) {
	_, api, st := setup(t)
	ctx := context.Background()
	s := New("tg:1", api, st, logx.Nop())

	if err := s.Login(ctx, backend.Credentials{Username: "ana", Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !s.Authenticated() || s.Username() != "ana" {
		t.Fatalf("expected authenticated ana, got authed=%v user=%q", s.Authenticated(), s.Username())
	}
	got, ok, err := st.LoadTokens(ctx, "tg:1")
	if err != nil || !ok {
		t.Fatalf("LoadTokens ok=%v err=%v", ok, err)
	}
	if got.Token != "tokx" || got.RefreshToken != "refx" {
		t.Fatalf("stored tokens = %+v", got)
	}
}

func TestLoginFailureLeavesNothingBehind(t *testing.T) {
	fb, api, st := setup(t)
	ctx := context.Background()
	s := New("tg:1", api, st, logx.Nop())

	err := s.Login(ctx, backend.Credentials{Username: "ana", Password: "wrong"})
	if !errors.Is(err, backend.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	fb.mu.Lock()
	fb.profileFail = true
	fb.mu.Unlock()
	if err := s.Login(ctx, backend.Credentials{Username: "ana", Password: "secret"}); err == nil {
		t.Fatalf("expected profile failure to fail login")
	}
	if s.Authenticated() {
		t.Fatalf("session must not stay authenticated")
	}
	if _, ok, _ := st.LoadTokens(ctx, "tg:1"); ok {
		t.Fatalf("tokens must not be persisted")
	}
}

func TestLogoutClearsStorage(t *testing.T) {
	_, api, st := setup(t)
	ctx := context.Background()
	s := New("cli", api, st, logx.Nop())
	if err := s.Login(ctx, backend.Credentials{Username: "ana", Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("still authenticated")
	}
	if _, ok := s.Profile(); ok {
		t.Fatalf("profile not cleared")
	}
	if _, ok, _ := st.LoadTokens(ctx, "cli"); ok {
		t.Fatalf("tokens not deleted")
	}
	if err := s.UpdateProfile(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestInitializeRestoresAndRotates(t *testing.T) {
	_, api, st := setup(t)
	ctx := context.Background()
	first := New("tg:7", api, st, logx.Nop())
	if err := first.Login(ctx, backend.Credentials{Username: "ana", Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	s := New("tg:7", api, st, logx.Nop())
	ok, err := s.Initialize(ctx)
	if err != nil || !ok {
		t.Fatalf("Initialize ok=%v err=%v", ok, err)
	}
	if s.Username() != "ana" {
		t.Fatalf("profile not loaded")
	}
	stored, _, _ := st.LoadTokens(ctx, "tg:7")
	if stored.RefreshToken != "refxx" {
		t.Fatalf("rotated pair not persisted: %+v", stored)
	}
}

func TestInitializeForgetsBadRefreshToken(t *testing.T) {
	_, api, st := setup(t)
	ctx := context.Background()
	_ = st.SaveTokens(ctx, "tg:7", storage.Tokens{Token: "old", RefreshToken: "unknown"})

	s := New("tg:7", api, st, logx.Nop())
	ok, err := s.Initialize(ctx)
	if err == nil || ok {
		t.Fatalf("expected failure, got ok=%v err=%v", ok, err)
	}
	if _, found, _ := st.LoadTokens(ctx, "tg:7"); found {
		t.Fatalf("stored pair should be forgotten")
	}

	empty := New("tg:8", api, st, logx.Nop())
	if ok, err := empty.Initialize(ctx); ok || err != nil {
		t.Fatalf("nothing stored: ok=%v err=%v", ok, err)
	}
}

func TestDoRefreshesOnceOnUnauthorized(t *testing.T) {
	fb, api, st := setup(t)
	ctx := context.Background()
	s := New("tg:1", api, st, logx.Nop())
	if err := s.Login(ctx, backend.Credentials{Username: "ana", Password: "secret"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	fb.expire()

	calls := 0
	err := s.Do(ctx, func(ctx context.Context, c *backend.Client) error {
		calls++
		_, err := c.Profile(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if s.Token() != "tokxx" {
		t.Fatalf("token not refreshed: %q", s.Token())
	}

	// A second expiry with a spent refresh token ends the session.
	fb.mu.Lock()
	fb.refresh = map[string]bool{}
	fb.mu.Unlock()
	fb.expire()
	err = s.UpdateProfile(ctx)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("expired session must be logged out")
	}
}

func TestRegistryRestoreAndList(t *testing.T) {
	_, api, st := setup(t)
	ctx := context.Background()

	seed := NewRegistry(api, st, logx.Nop())
	for _, k := range []string{TelegramKey(2), TelegramKey(1), CLIKey} {
		if err := seed.Get(k).Login(ctx, backend.Credentials{Username: "ana", Password: "secret"}); err != nil {
			t.Fatalf("Login %s: %v", k, err)
		}
	}

	r := NewRegistry(api, st, logx.Nop())
	n, err := r.Restore(ctx, TelegramPrefix)
	if err != nil || n != 2 {
		t.Fatalf("Restore n=%d err=%v", n, err)
	}
	r.Get(TelegramKey(3)) // logged out, must not be listed

	var keys []string
	for _, s := range r.Authenticated() {
		keys = append(keys, s.Key())
	}
	if strings.Join(keys, ",") != "tg:1,tg:2" {
		t.Fatalf("authenticated keys = %v", keys)
	}
	if r.Get(TelegramKey(1)) != r.Get(TelegramKey(1)) {
		t.Fatalf("Get must return the same session")
	}
}
