package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gatehouse/internal/session"
)

const (
	defaultServerURL = "http://localhost:8080"

	envServer      = "GATEHOUSE_SERVER"
	envSessionFile = "GATEHOUSE_SESSION_FILE"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	serverURL   string
	sessionFile string
	now         func() time.Time
}

// manager opens the session file and wraps it in a session manager.
func (o *rootOptions) manager() (*session.Manager, error) {
	store, err := session.OpenFileStore(o.sessionFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return session.NewManager(store, session.WithClock(o.now)), nil
}

// NewRootCmd builds the gatehousectl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{now: time.Now})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "gatehousectl",
		Short: "Gatehouse CLI - log in and inspect your session",
		Long: `gatehousectl is the command-line client for Gatehouse. Use it to log in,
check whether your stored session is still valid, and ask the server who
you are.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !cmd.Flags().Changed("server") {
				if v := os.Getenv(envServer); v != "" {
					opts.serverURL = v
				}
			}
			if !cmd.Flags().Changed("session-file") {
				if v := os.Getenv(envSessionFile); v != "" {
					opts.sessionFile = v
				}
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", defaultServerURL, "Gatehouse API server URL (also set via "+envServer+")")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session-file", "", "Session file path, default ~/.gatehouse/session.json (also set via "+envSessionFile+")")

	root.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newWhoamiCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
