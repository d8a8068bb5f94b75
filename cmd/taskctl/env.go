package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskbot/internal/app"
	"taskbot/internal/backend"
	"taskbot/internal/config"
	"taskbot/internal/session"
	"taskbot/internal/storage"
	logx "taskbot/pkg/logx"
)

// env is what every subcommand runs against.
type env struct {
	sess  *session.Session
	store storage.Store
	log   logx.Logger
	now   func() time.Time
}

func (e *env) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfigManager(path).Load()
	if errors.Is(err, fs.ErrNotExist) {
		return &config.Config{}, nil
	}
	return cfg, err
}

func nowUTC() time.Time { return time.Now().UTC() }

// defaultStorePath is the file-store prefix used when the config has no
// persistent storage.
func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".taskctl", "taskctl")
	}
	return filepath.Join(dir, "taskctl", "taskctl")
}

// openEnv builds the client and, when restore is set, brings back the saved
// session. A session that cannot be restored is simply logged out.
func openEnv(ctx context.Context, f *rootFlags, restore bool) (*env, error) {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if f.verbose {
		level = "debug"
	}
	log := logx.NewConsoleTo(os.Stderr, level).Component("taskctl")

	sc, enabled, err := app.MapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(f.store); p != "" {
		sc, enabled = storage.Config{Driver: "file", Path: p}, true
	}
	if !enabled || sc.Driver == "memory" {
		sc = storage.Config{Driver: "file", Path: defaultStorePath()}
	}
	st, err := storage.Open(sc, log.Component("storage"))
	if err != nil {
		return nil, err
	}

	bc, err := app.MapBackendConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if u := strings.TrimSpace(f.baseURL); u != "" {
		bc.BaseURL = u
	}
	if bc.UserAgent == "" {
		bc.UserAgent = "taskctl/" + Version
	}
	api := backend.New(bc, log.Component("backend"))
	s := session.New(session.CLIKey, api, st, log.Component("session"))

	e := &env{sess: s, store: st, log: log, now: nowUTC}
	if restore {
		if _, err := s.Initialize(ctx); err != nil {
			log.Debug("session restore failed", logx.Err(err))
		}
	}
	return e, nil
}

// authed is openEnv for commands that need a logged-in session.
func authed(ctx context.Context, f *rootFlags) (*env, error) {
	e, err := openEnv(ctx, f, true)
	if err != nil {
		return nil, err
	}
	if !e.sess.Authenticated() {
		_ = e.Close()
		return nil, errors.New("not logged in; run: taskctl login <username>")
	}
	return e, nil
}
