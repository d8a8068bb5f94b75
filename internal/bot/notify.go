package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
	"taskbot/internal/reminder"
	"taskbot/internal/session"
	kit "taskbot/internal/transport"
	"taskbot/internal/view"
	logx "taskbot/pkg/logx"
)

// LastReset returns the most recent reset boundary of c at or before now.
func LastReset(c recurrence.Cadence, now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch c {
	case recurrence.Daily:
		return day
	case recurrence.Weekly:
		back := (int(day.Weekday()) - int(time.Wednesday) + 7) % 7
		return day.AddDate(0, 0, -back)
	case recurrence.Monthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Time{}
}

// Pending returns the tasks of cadence c that can be completed at now.
// Weekly availability follows Monday-based weeks while the weekly reset is on
// Wednesday, so the list is taken at fire time rather than derived from the
// boundary itself.
func Pending(tasks []backend.Task, c recurrence.Cadence, now time.Time) []backend.Task {
	var out []backend.Task
	for _, t := range tasks {
		snap := t.Snapshot()
		if snap.Cadence == c && recurrence.IsAvailable(snap, now) {
			out = append(out, t)
		}
	}
	return out
}

// OnReset is the reminder handler. Every logged-in Telegram user with
// pending tasks of the cadence gets one message, unless that boundary was
// already announced to them.
func (b *Bot) OnReset(ctx context.Context, r reminder.Reset) error {
	if b.sender == nil {
		return nil
	}
	var errs []error
	sent := 0
	for _, s := range b.sessions.Authenticated() {
		uid, ok := telegramUser(s.Key())
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := b.notify(ctx, s, uid, r)
		if err != nil {
			b.log.Warn("reset notification failed", logx.String("session", s.Key()), logx.String("cadence", r.Cadence.String()), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Key(), err))
			continue
		}
		sent += n
	}
	b.log.Info("reset notifications", logx.String("cadence", r.Cadence.String()), logx.Time("at", r.At), logx.Int("sent", sent))
	return errors.Join(errs...)
}

func (b *Bot) notify(ctx context.Context, s *session.Session, uid int64, r reminder.Reset) (int, error) {
	key := dedupKey(s.Key(), r)
	if b.store != nil {
		until, seen, err := b.store.GetDedup(ctx, key)
		if err != nil {
			b.log.Debug("dedup lookup failed", logx.String("key", key), logx.Err(err))
		} else if seen && until.After(b.now()) {
			return 0, nil
		}
	}

	if err := s.UpdateProfile(ctx); err != nil {
		return 0, err
	}
	p, _ := s.Profile()
	tasks := Pending(p.User.Tasks, r.Cadence, b.now())
	if len(tasks) == 0 {
		return 0, nil
	}

	to := kit.ChatTarget{ChatID: uid}
	if _, err := b.sender.SendText(ctx, to, view.RenderReset(r.Cadence, r.At, tasks), &kit.SendOptions{DisablePreview: true}); err != nil {
		return 0, err
	}
	if b.store != nil {
		until := recurrence.NextReset(r.Cadence, r.At).Add(24 * time.Hour)
		if err := b.store.PutDedup(ctx, key, until); err != nil {
			b.log.Debug("dedup save failed", logx.String("key", key), logx.Err(err))
		}
	}
	return 1, nil
}

func dedupKey(sessionKey string, r reminder.Reset) string {
	return "reset:" + sessionKey + ":" + r.Cadence.Label() + ":" + strconv.FormatInt(r.At.Unix(), 10)
}

func telegramUser(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, session.TelegramPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	return id, err == nil
}
