package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
	"taskbot/internal/session"
	kit "taskbot/internal/transport"
	"taskbot/internal/transport/telegram/router"
	"taskbot/internal/view"
	logx "taskbot/pkg/logx"
	"taskbot/pkg/tgui"
)

const donePrefix = "done"

func (b *Bot) Commands() []router.Command {
	cmds := []router.Command{
		{Name: "start", Description: "welcome", Handle: b.cmdStart},
		{Name: "signup", Description: "create an account", Usage: "/signup <username> <password>", PrivateOnly: true, Handle: b.cmdSignup},
		{Name: "login", Description: "log in", Usage: "/login <username> <password>", PrivateOnly: true, Handle: b.cmdLogin},
		{Name: "logout", Description: "log out", Handle: b.cmdLogout},
		{Name: "whoami", Description: "show your profile", Handle: b.cmdWhoami},
		{Name: "tasks", Aliases: []string{"t"}, Description: "list tasks and their reset timers", Handle: b.cmdTasks},
		{Name: "done", Aliases: []string{"d"}, Description: "mark a task as completed", Usage: "/done <taskId>", Handle: b.cmdDone},
		{Name: "add", Description: "create a recurring task", Usage: "/add <daily|weekly|monthly> <title...>", Handle: b.cmdAdd},
		{Name: "rm", Description: "delete a task", Usage: "/rm <taskId>", Handle: b.cmdRemove},
		{Name: "resets", Aliases: []string{"r"}, Description: "time left until each reset", Handle: b.cmdResets},
		{Name: "notes", Description: "list your notes", Handle: b.cmdNotes},
		{Name: "note", Description: "add a note", Usage: `/note "<title>" <contents...>`, Handle: b.cmdNote},
		{Name: "groups", Description: "list your groups", Handle: b.cmdGroups},
	}
	if b.rem != nil {
		cmds = append(cmds,
			router.Command{Name: "reminders", Description: "reminder schedule", Access: router.AccessOwnerOnly, Handle: b.cmdReminders},
			router.Command{Name: "fire", Description: "run a reset notification now", Usage: "/fire <daily|weekly|monthly>", Access: router.AccessOwnerOnly, Handle: b.cmdFire},
		)
	}
	return cmds
}

func (b *Bot) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{{Prefix: donePrefix, Handle: b.cbDone}}
}

func (b *Bot) cmdStart(ctx context.Context, req *router.Request) error {
	msg := "👋 Hi! I keep track of your daily, weekly and monthly tasks.\n\n" +
		"Log in with /login <username> <password> (private chat), then try /tasks.\n" +
		"Daily tasks reset at 00:00 UTC, weekly on Wednesday, monthly on the 1st.\n" +
		"See /help for everything else."
	return req.Reply(ctx, msg)
}

func credentials(req *router.Request) (backend.Credentials, error) {
	if len(req.Args) != 2 {
		return backend.Credentials{}, router.Userf("Usage: /%s <username> <password>", req.Command)
	}
	return backend.Credentials{Username: req.Args[0], Password: req.Args[1]}, nil
}

// forgetSecret deletes the user's message, which carries a password.
func (b *Bot) forgetSecret(ctx context.Context, req *router.Request) {
	if req.Update.Message == nil {
		return
	}
	if err := req.Adapter.DeleteMessage(ctx, req.Update.Message.Ref()); err != nil {
		req.Logger.Debug("delete credentials message failed", logx.Err(err))
	}
}

func (b *Bot) cmdSignup(ctx context.Context, req *router.Request) error {
	b.forgetSecret(ctx, req)
	creds, err := credentials(req)
	if err != nil {
		return err
	}
	s := b.sessions.Get(session.TelegramKey(req.FromID))
	if err := s.Client().Signup(ctx, creds); err != nil {
		return friendly(err)
	}
	if err := s.Login(ctx, creds); err != nil {
		return friendly(err)
	}
	return req.Reply(ctx, "✅ Account created. Welcome, "+s.Username()+"! Try /add daily water the plants")
}

func (b *Bot) cmdLogin(ctx context.Context, req *router.Request) error {
	b.forgetSecret(ctx, req)
	creds, err := credentials(req)
	if err != nil {
		return err
	}
	s := b.sessions.Get(session.TelegramKey(req.FromID))
	if err := s.Login(ctx, creds); err != nil {
		req.Logger.Info("login failed", logx.String("user", creds.Username), logx.Err(err))
		return router.Userf("❌ Login failed. Check your username and password.")
	}
	return req.Reply(ctx, "✅ Logged in as "+s.Username()+". Your messages with the password were removed.")
}

func (b *Bot) cmdLogout(ctx context.Context, req *router.Request) error {
	s := b.sessions.Get(session.TelegramKey(req.FromID))
	if !s.Authenticated() {
		return req.Reply(ctx, "You are not logged in.")
	}
	if err := s.Logout(ctx); err != nil {
		return err
	}
	return req.Reply(ctx, "👋 Logged out.")
}

func (b *Bot) cmdWhoami(ctx context.Context, req *router.Request) error {
	s, err := b.session(req)
	if err != nil {
		return err
	}
	if err := s.UpdateProfile(ctx); err != nil {
		return friendly(err)
	}
	p, _ := s.Profile()
	return req.Reply(ctx, view.RenderProfile(p, b.now()))
}

func (b *Bot) cmdTasks(ctx context.Context, req *router.Request) error {
	s, err := b.session(req)
	if err != nil {
		return err
	}
	if err := s.UpdateProfile(ctx); err != nil {
		return friendly(err)
	}
	p, _ := s.Profile()
	now := b.now()

	kb := tgui.NewInline()
	var btns []tele.Btn
	for _, r := range view.Rows(p.User.Tasks, now) {
		if !r.Available || !r.Cadence.Valid() {
			continue
		}
		data, err := tgui.Data(donePrefix, r.ID)
		if err != nil {
			continue
		}
		btns = append(btns, tgui.Btn("✅ "+r.Title, data))
	}
	kb.Columns(2, btns)

	opt := &kit.SendOptions{DisablePreview: true}
	if rm := kb.Markup(); rm != nil {
		opt.ReplyMarkupAdapter = rm
	}
	_, err = req.Adapter.SendText(ctx, req.Chat, view.RenderTasks(p.User.Tasks, now), opt)
	return err
}

func (b *Bot) cmdDone(ctx context.Context, req *router.Request) error {
	if len(req.Args) != 1 {
		return router.Userf("Usage: /done <taskId>")
	}
	msg, err := b.complete(ctx, req, req.Args[0])
	if err != nil {
		return err
	}
	return req.Reply(ctx, msg)
}

func (b *Bot) cbDone(ctx context.Context, req *router.Request, payload string) error {
	msg, err := b.complete(ctx, req, payload)
	if err != nil {
		return err
	}
	return req.Reply(ctx, msg)
}

// complete records a completion if the task is currently available.
func (b *Bot) complete(ctx context.Context, req *router.Request, taskID string) (string, error) {
	s, err := b.session(req)
	if err != nil {
		return "", err
	}
	now := b.now()
	task, err := s.CompleteTask(ctx, taskID, now)
	var na *session.NotAvailableError
	switch {
	case err == nil:
		return fmt.Sprintf("✅ %q done. Next reset in %s.", task.Title, recurrence.Countdown(task.Snapshot().Cadence, now)), nil
	case errors.As(err, &na) && na.NextReset.IsZero():
		return "", router.Userf("❔ Task %q has an unknown cadence %q.", na.Task.Title, na.Task.TaskType)
	case errors.As(err, &na):
		return fmt.Sprintf("⏳ %q is already done. It resets in %s.", na.Task.Title, recurrence.FormatCountdown(na.NextReset, now)), nil
	case errors.Is(err, session.ErrTaskNotFound):
		return "", router.Userf("❔ No task with id %s. See /tasks", taskID)
	}
	return "", friendly(err)
}

func (b *Bot) cmdAdd(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 2 {
		return router.Userf("Usage: /add <daily|weekly|monthly> <title...>")
	}
	c, ok := recurrence.ParseCadence(req.Args[0])
	if !ok {
		return router.Userf("❔ Unknown cadence %q. Use daily, weekly or monthly.", req.Args[0])
	}
	title := strings.TrimSpace(strings.Join(req.Args[1:], " "))
	s, err := b.session(req)
	if err != nil {
		return err
	}

	var task backend.Task
	start := time.Now()
	err = s.Do(ctx, func(ctx context.Context, cl *backend.Client) error {
		var err error
		task, err = cl.CreateTask(ctx, backend.NewTask{Title: title, Description: req.Flags["desc"], TaskType: c})
		return err
	})
	s.Audit(ctx, "create_task", title, start, err)
	if err != nil {
		return friendly(err)
	}
	return req.Reply(ctx, fmt.Sprintf("➕ Added %s task %q [%s].", c.Label(), task.Title, task.ID))
}

func (b *Bot) cmdRemove(ctx context.Context, req *router.Request) error {
	if len(req.Args) != 1 {
		return router.Userf("Usage: /rm <taskId>")
	}
	s, err := b.session(req)
	if err != nil {
		return err
	}
	start := time.Now()
	err = s.Do(ctx, func(ctx context.Context, c *backend.Client) error {
		return c.DeleteTask(ctx, req.Args[0])
	})
	s.Audit(ctx, "delete_task", req.Args[0], start, err)
	if err != nil {
		return friendly(err)
	}
	return req.Reply(ctx, "🗑 Task deleted.")
}

func (b *Bot) cmdResets(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, view.RenderResets(b.now()))
}

func (b *Bot) cmdNotes(ctx context.Context, req *router.Request) error {
	s, err := b.session(req)
	if err != nil {
		return err
	}
	if err := s.UpdateProfile(ctx); err != nil {
		return friendly(err)
	}
	p, _ := s.Profile()
	return req.Reply(ctx, view.RenderNotes(p.User.Notes))
}

func (b *Bot) cmdNote(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 1 {
		return router.Userf(`Usage: /note "<title>" <contents...>`)
	}
	s, err := b.session(req)
	if err != nil {
		return err
	}
	in := backend.NoteInput{Title: req.Args[0], Contents: strings.Join(req.Args[1:], " ")}
	var note backend.UserNote
	err = s.Do(ctx, func(ctx context.Context, c *backend.Client) error {
		var err error
		note, err = c.CreateNote(ctx, in)
		return err
	})
	if err != nil {
		return friendly(err)
	}
	return req.Reply(ctx, fmt.Sprintf("🗒 Saved note %q [%s].", note.Title, note.ID))
}

func (b *Bot) cmdGroups(ctx context.Context, req *router.Request) error {
	s, err := b.session(req)
	if err != nil {
		return err
	}
	if err := s.UpdateProfile(ctx); err != nil {
		return friendly(err)
	}
	p, _ := s.Profile()
	return req.Reply(ctx, view.RenderGroups(p.Groups))
}

func (b *Bot) cmdReminders(ctx context.Context, req *router.Request) error {
	snap := b.rem.Snapshot()
	var sb strings.Builder
	fmt.Fprintf(&sb, "⏰ Reminders: enabled=%v running=%v fired=%d failed=%d\n", snap.Enabled, snap.Running, snap.Fired, snap.Failed)
	for _, e := range snap.Entries {
		fmt.Fprintf(&sb, "  • %s: next %s", e.Cadence.Label(), e.Next.UTC().Format("2006-01-02 15:04"))
		if !e.Prev.IsZero() {
			fmt.Fprintf(&sb, ", prev %s", e.Prev.UTC().Format("2006-01-02 15:04"))
		}
		sb.WriteString("\n")
	}
	logged := len(b.sessions.Authenticated())
	fmt.Fprintf(&sb, "Logged-in users: %d", logged)
	return req.Reply(ctx, sb.String())
}

// cmdFire replays the most recent reset of a cadence.
func (b *Bot) cmdFire(ctx context.Context, req *router.Request) error {
	if len(req.Args) != 1 {
		return router.Userf("Usage: /fire <daily|weekly|monthly>")
	}
	c, ok := recurrence.ParseCadence(req.Args[0])
	if !ok {
		return router.Userf("❔ Unknown cadence %q.", req.Args[0])
	}
	at := LastReset(c, b.now())
	if err := b.rem.Fire(ctx, c, at); err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("🔄 Replayed %s reset of %s.", c.Label(), at.Format("2006-01-02 15:04")))
}
