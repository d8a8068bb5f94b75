// Command taskctl is a terminal client for the tasks/notes backend. It keeps
// one session (key "cli") in the configured store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	config  string
	baseURL string
	store   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Manage recurring tasks and notes",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", "./config.json", "config file (json or yaml); optional")
	root.PersistentFlags().StringVar(&f.baseURL, "base-url", "", "backend URL, overrides backend.base_url")
	root.PersistentFlags().StringVar(&f.store, "store", "", "session file prefix, overrides storage")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		signupCmd(f),
		loginCmd(f),
		logoutCmd(f),
		whoamiCmd(f),
		passwdCmd(f),
		tasksCmd(f),
		doneCmd(f),
		addCmd(f),
		rmCmd(f),
		resetsCmd(),
		notesCmd(f),
		groupsCmd(f),
	)
	return root
}
