package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gatehouse/internal/auth"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Long: `Shows who the stored token belongs to and when it expires. An expired
token is removed. Nothing is sent to the server, so a token the server
has stopped accepting still shows here until "whoami" is run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			live, err := mgr.CleanupSession()
			if err != nil {
				return fmt.Errorf("failed to check session: %w", err)
			}
			if !live {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			claims, ok := mgr.UserPayload()
			if !ok {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			fmt.Fprintf(out, "Logged in as %s (%s)\n", claims.Subject, claims.Email)
			fmt.Fprintf(out, "Roles: %s\n", formatRoles(claims.Roles))
			if claims.ExpiresAt != nil {
				remaining := claims.ExpiresAt.Sub(opts.now()).Round(time.Second)
				fmt.Fprintf(out, "Expires: %s (in %s)\n", claims.ExpiresAt.Local().Format(time.RFC1123), remaining)
			}
			return nil
		},
	}
}

func formatRoles(roles []auth.Role) string {
	if len(roles) == 0 {
		return "-"
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
