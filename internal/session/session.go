// Package session keeps the logged-in state for one backend account: the
// token pair, the cached profile and their persisted copy.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskbot/internal/backend"
	"taskbot/internal/storage"
	logx "taskbot/pkg/logx"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrExpired          = errors.New("session expired, log in again")
)

type Session struct {
	key   string
	api   *backend.Client
	store storage.Store
	log   logx.Logger
	now   func() time.Time

	mu      sync.RWMutex
	tokens  backend.TokenPair
	profile *backend.Profile
	authed  bool

	// serializes refreshes so concurrent 401s refresh once
	refreshMu sync.Mutex
}

// New creates a logged-out session. store may be nil.
func New(key string, base *backend.Client, store storage.Store, log logx.Logger) *Session {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Session{
		key:   key,
		store: store,
		log:   log.With(logx.String("session", key)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	s.api = base.WithTokens(s)
	return s
}

func (s *Session) Key() string { return s.key }

// Token implements backend.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.Token
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

// Profile returns the last fetched profile.
func (s *Session) Profile() (backend.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return backend.Profile{}, false
	}
	return *s.profile, true
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.User.Username
}

// Client returns the authenticated backend client. Prefer Do, which
// refreshes an expired token once.
func (s *Session) Client() *backend.Client { return s.api }

// Login exchanges credentials for a token pair, loads the profile and only
// then persists the pair.
func (s *Session) Login(ctx context.Context, creds backend.Credentials) error {
	start := time.Now()
	tp, err := s.api.Login(ctx, creds)
	if err != nil {
		s.audit(ctx, "login", creds.Username, start, err)
		return fmt.Errorf("login: %w", err)
	}

	s.setTokens(tp)
	p, err := s.api.Profile(ctx)
	if err != nil {
		s.clear()
		s.audit(ctx, "login", creds.Username, start, err)
		return fmt.Errorf("login: fetch profile: %w", err)
	}
	s.setProfile(p)

	if err := s.persist(ctx, tp); err != nil {
		s.log.Warn("persist tokens failed", logx.Err(err))
	}
	s.log.Info("logged in", logx.String("user", p.User.Username))
	s.audit(ctx, "login", p.User.Username, start, nil)
	return nil
}

// Logout drops the in-memory state and the persisted token pair.
func (s *Session) Logout(ctx context.Context) error {
	user := s.Username()
	s.clear()
	if s.store != nil {
		if err := s.store.DeleteTokens(ctx, s.key); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
	}
	s.audit(ctx, "logout", user, time.Now(), nil)
	return nil
}

// Initialize restores a persisted session: it refreshes the stored pair and
// loads the profile. Any failure forgets the stored pair. restored is false
// when nothing was stored.
func (s *Session) Initialize(ctx context.Context) (restored bool, err error) {
	if s.store == nil {
		return false, nil
	}
	stored, ok, err := s.store.LoadTokens(ctx, s.key)
	if err != nil {
		return false, fmt.Errorf("load tokens: %w", err)
	}
	if !ok || !stored.Valid() {
		return false, nil
	}

	tp, err := s.api.RefreshToken(ctx, stored.RefreshToken)
	if err != nil {
		s.forget(ctx)
		return false, fmt.Errorf("restore: refresh: %w", err)
	}
	s.setTokens(tp)

	p, err := s.api.Profile(ctx)
	if err != nil {
		s.clear()
		s.forget(ctx)
		return false, fmt.Errorf("restore: fetch profile: %w", err)
	}
	s.setProfile(p)

	if err := s.persist(ctx, tp); err != nil {
		s.log.Warn("persist tokens failed", logx.Err(err))
	}
	s.log.Info("session restored", logx.String("user", p.User.Username))
	return true, nil
}

// UpdateProfile refetches the profile.
func (s *Session) UpdateProfile(ctx context.Context) error {
	return s.Do(ctx, func(ctx context.Context, c *backend.Client) error {
		p, err := c.Profile(ctx)
		if err != nil {
			return err
		}
		s.setProfile(p)
		return nil
	})
}

// Do runs fn against the authenticated client. If fn fails with
// backend.ErrUnauthorized the token pair is refreshed and fn runs once more.
func (s *Session) Do(ctx context.Context, fn func(context.Context, *backend.Client) error) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	used := s.Token()
	err := fn(ctx, s.api)
	if !errors.Is(err, backend.ErrUnauthorized) {
		return err
	}
	if rerr := s.refresh(ctx, used); rerr != nil {
		return rerr
	}
	return fn(ctx, s.api)
}

// refresh swaps the token pair unless another caller already replaced the
// token that failed.
func (s *Session) refresh(ctx context.Context, failed string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	cur := s.tokens
	s.mu.RUnlock()
	if cur.Token != failed && cur.Token != "" {
		return nil
	}
	if cur.RefreshToken == "" {
		return ErrExpired
	}

	tp, err := s.api.RefreshToken(ctx, cur.RefreshToken)
	if err != nil {
		s.log.Info("token refresh failed", logx.Err(err))
		if errors.Is(err, backend.ErrUnauthorized) {
			s.clear()
			s.forget(ctx)
			return ErrExpired
		}
		return fmt.Errorf("refresh: %w", err)
	}
	s.setTokens(tp)
	if err := s.persist(ctx, tp); err != nil {
		s.log.Warn("persist tokens failed", logx.Err(err))
	}
	s.log.Debug("token refreshed")
	return nil
}

func (s *Session) setTokens(tp backend.TokenPair) {
	s.mu.Lock()
	s.tokens = tp
	s.authed = tp.Token != ""
	s.mu.Unlock()
}

func (s *Session) setProfile(p backend.Profile) {
	s.mu.Lock()
	s.profile = &p
	s.mu.Unlock()
}

func (s *Session) clear() {
	s.mu.Lock()
	s.tokens = backend.TokenPair{}
	s.profile = nil
	s.authed = false
	s.mu.Unlock()
}

func (s *Session) persist(ctx context.Context, tp backend.TokenPair) error {
	if s.store == nil {
		return nil
	}
	return s.store.SaveTokens(ctx, s.key, storage.Tokens{
		Token:        tp.Token,
		RefreshToken: tp.RefreshToken,
		SavedAt:      s.now(),
	})
}

func (s *Session) forget(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.DeleteTokens(ctx, s.key); err != nil {
		s.log.Warn("delete stored tokens failed", logx.Err(err))
	}
}

// Audit records an action taken through this session. Errors are logged.
func (s *Session) Audit(ctx context.Context, action, target string, start time.Time, err error) {
	s.audit(ctx, action, target, start, err)
}

func (s *Session) audit(ctx context.Context, action, target string, start time.Time, err error) {
	if s.store == nil {
		return
	}
	e := storage.AuditEntry{
		At:       s.now(),
		Session:  s.key,
		Username: s.Username(),
		Action:   action,
		Target:   strings.TrimSpace(target),
		TookMS:   time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := s.store.AppendAudit(ctx, e); aerr != nil && !errors.Is(aerr, storage.ErrClosed) {
		s.log.Warn("audit append failed", logx.Err(aerr))
	}
}
