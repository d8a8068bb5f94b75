// Package bot implements the Telegram commands for tasks and notes, and the
// reset notifications sent when recurring tasks become available again.
package bot

import (
	"context"
	"errors"
	"time"

	"taskbot/internal/backend"
	"taskbot/internal/reminder"
	"taskbot/internal/session"
	"taskbot/internal/storage"
	kit "taskbot/internal/transport"
	"taskbot/internal/transport/telegram/router"
	logx "taskbot/pkg/logx"
)

type Deps struct {
	Sessions *session.Registry
	// Reminder is optional; owner commands that inspect it are hidden when nil.
	Reminder *reminder.Service
	// Sender delivers reset notifications. Without it OnReset is a no-op.
	Sender kit.Sender
	// Store is optional; it de-duplicates reset notifications.
	Store storage.Store
	Now   func() time.Time
	Log   logx.Logger
}

type Bot struct {
	sessions *session.Registry
	rem      *reminder.Service
	sender   kit.Sender
	store    storage.Store
	now      func() time.Time
	log      logx.Logger
}

func New(d Deps) *Bot {
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Bot{sessions: d.Sessions, rem: d.Reminder, sender: d.Sender, store: d.Store, now: d.Now, log: d.Log}
}

// SetReminder attaches the reminder service after construction, since the
// service itself is built around OnReset. Call it before Commands.
func (b *Bot) SetReminder(r *reminder.Service) { b.rem = r }

// session returns the caller's session or a UserError asking them to log in.
func (b *Bot) session(req *router.Request) (*session.Session, error) {
	s := b.sessions.Get(session.TelegramKey(req.FromID))
	if !s.Authenticated() {
		return nil, router.Userf("🔑 You are not logged in. Send /login <username> <password> in a private chat.")
	}
	return s, nil
}

// friendly maps backend and session failures to chat-ready errors.
func friendly(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrExpired):
		return router.Userf("🔑 Your session expired. Please /login again.")
	case errors.Is(err, session.ErrNotAuthenticated):
		return router.Userf("🔑 You are not logged in.")
	case errors.Is(err, backend.ErrNotFound):
		return router.Userf("❔ Not found.")
	case errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var se *backend.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return router.Userf("⚠️ The server refused that request (%d).", se.Code)
	}
	return err
}
