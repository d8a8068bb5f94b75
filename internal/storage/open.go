package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "taskbot/pkg/logx"
)

// Store is the persistence API used by the session and reminder layers.
type Store interface {
	SaveTokens(ctx context.Context, key string, t Tokens) error
	LoadTokens(ctx context.Context, key string) (t Tokens, ok bool, err error)
	DeleteTokens(ctx context.Context, key string) error
	// SessionKeys lists every key that currently has a token pair.
	SessionKeys(ctx context.Context) ([]string, error)

	AppendAudit(ctx context.Context, e AuditEntry) error

	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "memory", "mem":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
