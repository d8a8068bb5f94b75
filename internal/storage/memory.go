package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryStore keeps everything in process memory.
// Used when persistence is not configured and in tests.
type memoryStore struct {
	mu     sync.Mutex
	closed bool

	tokens map[string]Tokens
	dedup  map[string]time.Time
	audit  []AuditEntry
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memoryStore{
		tokens: map[string]Tokens{},
		dedup:  map[string]time.Time{},
	}
}

func (s *memoryStore) SaveTokens(ctx context.Context, key string, t Tokens) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if t.SavedAt.IsZero() {
		t.SavedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.tokens[key] = t
	return nil
}

func (s *memoryStore) LoadTokens(ctx context.Context, key string) (Tokens, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Tokens{}, false, ErrClosed
	}
	t, ok := s.tokens[strings.TrimSpace(key)]
	return t, ok, nil
}

func (s *memoryStore) DeleteTokens(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.tokens, strings.TrimSpace(key))
	return nil
}

func (s *memoryStore) SessionKeys(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(s.tokens))
	for k := range s.tokens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *memoryStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.dedup[key] = until
	return nil
}

func (s *memoryStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return time.Time{}, false, ErrClosed
	}
	until, ok := s.dedup[strings.TrimSpace(key)]
	return until, ok, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
