package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gatehouse/internal/session"
)

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Ask the server who the stored session belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := opts.manager()
			if err != nil {
				return err
			}
			if err := mgr.RequireSession(); err != nil {
				if errors.Is(err, session.ErrNoSession) {
					return errors.New(`not logged in, run "gatehousectl login"`)
				}
				return err
			}

			me, err := newAPIClient(opts.serverURL, mgr).me(cmd.Context())
			if isUnauthorized(err) {
				return errors.New(`session rejected by server, run "gatehousectl login"`)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Subject: %s\n", me.Subject)
			fmt.Fprintf(out, "Email: %s\n", me.Email)
			fmt.Fprintf(out, "Roles: %s\n", formatRoles(me.Roles))
			fmt.Fprintf(out, "Effective roles: %s\n", formatRoles(me.EffectiveRoles))
			return nil
		},
	}
}
