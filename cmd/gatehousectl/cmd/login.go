package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		email        string
		passwordFile string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Gatehouse",
		Long: `Exchanges an email and password for an access token and stores it in the
session file.

The password is prompted for without echo when stdin is a terminal. For
scripts, pass --password-file or pipe the password on stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			password, err := readLoginPassword(cmd, passwordFile)
			if err != nil {
				return err
			}

			mgr, err := opts.manager()
			if err != nil {
				return err
			}

			res, err := newAPIClient(opts.serverURL, nil).login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := mgr.SetSession(res.AccessToken); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s (%s)\n", res.Principal.ID, res.Principal.Identifier)
			fmt.Fprintf(out, "Roles: %s\n", formatRoles(res.Principal.Roles))
			fmt.Fprintf(out, "Session expires %s\n", res.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email address")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "Read the password from this file")
	return cmd
}

// readLoginPassword reads the password from passwordFile, a no-echo
// terminal prompt, or the first line of stdin, in that order.
func readLoginPassword(cmd *cobra.Command, passwordFile string) (string, error) {
	if passwordFile != "" {
		data, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("reading password file: %w", err)
		}
		return nonEmptyPassword(strings.TrimRight(string(data), "\r\n"))
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return nonEmptyPassword(string(raw))
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return nonEmptyPassword(strings.TrimRight(line, "\r\n"))
}

func nonEmptyPassword(p string) (string, error) {
	if p == "" {
		return "", errors.New("password is required")
	}
	return p, nil
}
