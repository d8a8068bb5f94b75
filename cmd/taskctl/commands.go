package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"taskbot/internal/backend"
	"taskbot/internal/recurrence"
	"taskbot/internal/session"
	"taskbot/internal/view"
)

// readPassword takes --password, or the first line of stdin.
func readPassword(cmd *cobra.Command, flag, prompt string) (string, error) {
	if pw, _ := cmd.Flags().GetString(flag); pw != "" {
		return pw, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password")
	}
	return pw, nil
}

func signupCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <username>",
		Short: "Create an account and log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, "password", "Password: ")
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer e.Close()
			creds := backend.Credentials{Username: args[0], Password: pw}
			if err := e.sess.Client().Signup(cmd.Context(), creds); err != nil {
				return err
			}
			if err := e.sess.Login(cmd.Context(), creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created. Logged in as %s.\n", e.sess.Username())
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (read from stdin when empty)")
	return cmd
}

func loginCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, "password", "Password: ")
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.sess.Login(cmd.Context(), backend.Credentials{Username: args[0], Password: pw}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", e.sess.Username())
			return nil
		},
	}
	cmd.Flags().String("password", "", "password (read from stdin when empty)")
	return cmd
}

func logoutCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.sess.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func whoamiCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			p, _ := e.sess.Profile()
			fmt.Fprintln(cmd.OutOrStdout(), view.RenderProfile(p, e.now()))
			return nil
		},
	}
}

func passwdCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			old, _ := cmd.Flags().GetString("old")
			next, _ := cmd.Flags().GetString("new")
			if old == "" || next == "" {
				return errors.New("--old and --new are required")
			}
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			req := backend.ChangePassword{Password: old, NewPassword: next}
			err = e.sess.Do(cmd.Context(), func(ctx context.Context, c *backend.Client) error {
				return c.ChangePassword(ctx, req)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
			return nil
		},
	}
	cmd.Flags().String("old", "", "current password")
	cmd.Flags().String("new", "", "new password")
	return cmd
}

func tasksCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"ls"},
		Short:   "List tasks with their availability",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			p, _ := e.sess.Profile()
			fmt.Fprintln(cmd.OutOrStdout(), view.RenderTasks(p.User.Tasks, e.now()))
			return nil
		},
	}
}

func doneCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "done <taskId>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			now := e.now()
			task, err := e.sess.CompleteTask(cmd.Context(), args[0], now)
			var na *session.NotAvailableError
			if errors.As(err, &na) && !na.NextReset.IsZero() {
				return fmt.Errorf("%q is already done; it resets in %s (%s)",
					na.Task.Title, recurrence.FormatCountdown(na.NextReset, now), humanize.Time(na.NextReset))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Done: %s. Next reset in %s.\n", task.Title, recurrence.Countdown(task.Snapshot().Cadence, now))
			return nil
		},
	}
}

func addCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <daily|weekly|monthly> <title...>",
		Short: "Create a recurring task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := recurrence.ParseCadence(args[0])
			if !ok {
				return fmt.Errorf("unknown cadence %q", args[0])
			}
			desc, _ := cmd.Flags().GetString("desc")
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			in := backend.NewTask{Title: strings.Join(args[1:], " "), Description: desc, TaskType: c}
			var task backend.Task
			err = e.sess.Do(cmd.Context(), func(ctx context.Context, cl *backend.Client) error {
				var err error
				task, err = cl.CreateTask(ctx, in)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s task %q [%s].\n", c.Label(), task.Title, task.ID)
			return nil
		},
	}
	cmd.Flags().String("desc", "", "description")
	return cmd
}

func rmCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <taskId>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			err = e.sess.Do(cmd.Context(), func(ctx context.Context, c *backend.Client) error {
				return c.DeleteTask(ctx, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
}

func resetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resets",
		Short: "Show the time left until each reset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), view.RenderResets(nowUTC()))
			return nil
		},
	}
}

func notesCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			p, _ := e.sess.Profile()
			fmt.Fprintln(cmd.OutOrStdout(), view.RenderNotes(p.User.Notes))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <title> [contents...]",
		Short: "Create a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			in := backend.NoteInput{Title: args[0], Contents: strings.Join(args[1:], " ")}
			var n backend.UserNote
			err = e.sess.Do(cmd.Context(), func(ctx context.Context, c *backend.Client) error {
				var err error
				n, err = c.CreateNote(ctx, in)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved note %q [%s].\n", n.Title, n.ID)
			return nil
		},
	})
	return cmd
}

func groupsCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := authed(cmd.Context(), f)
			if err != nil {
				return err
			}
			defer e.Close()
			p, _ := e.sess.Profile()
			fmt.Fprintln(cmd.OutOrStdout(), view.RenderGroups(p.Groups))
			return nil
		},
	}
	member := func(use, short string, join bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <groupId>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := authed(cmd.Context(), f)
				if err != nil {
					return err
				}
				defer e.Close()
				err = e.sess.Do(cmd.Context(), func(ctx context.Context, c *backend.Client) error {
					if join {
						return c.JoinGroup(ctx, args[0])
					}
					return c.LeaveGroup(ctx, args[0])
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK.")
				return nil
			},
		}
	}
	cmd.AddCommand(member("join", "Join a group", true), member("leave", "Leave a group", false))
	return cmd
}
