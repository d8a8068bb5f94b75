package session

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"taskbot/internal/backend"
	"taskbot/internal/storage"
	logx "taskbot/pkg/logx"
)

// CLIKey is the session key used by the command-line client.
const CLIKey = "cli"

// TelegramPrefix starts every Telegram session key.
const TelegramPrefix = "tg:"

// TelegramKey returns the session key for a Telegram user.
func TelegramKey(userID int64) string { return TelegramPrefix + strconv.FormatInt(userID, 10) }

// Registry holds one Session per key, created on first use.
type Registry struct {
	base  *backend.Client
	store storage.Store
	log   logx.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(base *backend.Client, store storage.Store, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{base: base, store: store, log: log, sessions: map[string]*Session{}}
}

// Get returns the session for key, creating a logged-out one if needed.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := New(key, r.base, r.store, r.log)
	r.sessions[key] = s
	return s
}

// Restore initializes every session whose key starts with prefix and that
// has a persisted token pair, and returns how many came back. An empty prefix
// matches all keys. Individual failures are logged, not returned.
func (r *Registry) Restore(ctx context.Context, prefix string) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	keys, err := r.store.SessionKeys(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		ok, err := r.Get(k).Initialize(ctx)
		if err != nil {
			r.log.Warn("session restore failed", logx.String("session", k), logx.Err(err))
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Authenticated lists logged-in sessions ordered by key.
func (r *Registry) Authenticated() []*Session {
	r.mu.Lock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.Unlock()

	n := 0
	for _, s := range out {
		if s.Authenticated() {
			out[n] = s
			n++
		}
	}
	out = out[:n]
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}
