package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/domain/session"
)

var (
	loginEmail         string
	loginPassword      string
	loginPasswordStdin bool

	registerFirstName     string
	registerLastName      string
	registerEmail         string
	registerCountry       string
	registerPassword      string
	registerPasswordStdin bool
	registerAgree         bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	Long: `Log in with email and password. The token is stored in the configured
token store so later commands reuse the session.

Examples:
  echo "$PASSWORD" | docdesk login --email you@example.com --password-stdin
  docdesk login --email you@example.com --password hunter22`,
	Args: cobra.NoArgs,
	RunE: withApp(false, func(cmd *cobra.Command, args []string, a *app) error {
		password, err := readPassword(cmd, loginPassword, loginPasswordStdin)
		if err != nil {
			return err
		}
		creds := auth.Credentials{Email: loginEmail, Password: password}
		if err := a.sessions.Login(cmd.Context(), creds); err != nil {
			return err
		}
		snap := a.sessions.Snapshot()
		printMessage(cmd, "Logged in as %s", snap.User.DisplayName())
		return printResult(cmd, snap)
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Long: `Create an account. Registration does not log you in; run "docdesk login"
afterwards.

Example:
  echo "$PASSWORD" | docdesk register --first-name Ada --last-name Lovelace \
    --email ada@example.com --country UK --agree-to-terms --password-stdin`,
	Args: cobra.NoArgs,
	RunE: withApp(false, func(cmd *cobra.Command, args []string, a *app) error {
		password, err := readPassword(cmd, registerPassword, registerPasswordStdin)
		if err != nil {
			return err
		}
		reg := auth.Registration{
			FirstName:       registerFirstName,
			LastName:        registerLastName,
			Email:           registerEmail,
			Password:        password,
			ConfirmPassword: password,
			Country:         registerCountry,
			AgreeToTerms:    registerAgree,
		}
		if err := a.sessions.Register(cmd.Context(), reg); err != nil {
			return err
		}
		printMessage(cmd, "Account created for %s. Run \"docdesk login\" to sign in.", reg.Email)
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the session",
	Long:  `Invalidate the token on the backend and remove it from the token store. The local session always ends, even when the backend cannot be reached.`,
	Args:  cobra.NoArgs,
	RunE: withApp(false, func(cmd *cobra.Command, args []string, a *app) error {
		a.sessions.Logout(cmd.Context())
		printMessage(cmd, "Logged out")
		return nil
	}),
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trade the stored token for a new one",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.sessions.Refresh(cmd.Context()); err != nil {
			return err
		}
		return printResult(cmd, newStatus(a))
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session state",
	Long:  `Show the session state, the logged-in user, and a fingerprint and expiry of the stored token. The token itself is never printed.`,
	Args:  cobra.NoArgs,
	RunE: withApp(false, func(cmd *cobra.Command, args []string, a *app) error {
		return printResult(cmd, newStatus(a))
	}),
}

// status is the output of "docdesk status".
type status struct {
	State       session.State `json:"state" yaml:"state"`
	User        *session.User `json:"user,omitempty" yaml:"user,omitempty"`
	Fingerprint string        `json:"tokenFingerprint,omitempty" yaml:"token_fingerprint,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
	Backend     string        `json:"backend" yaml:"backend"`
	TokenStore  string        `json:"tokenStore" yaml:"token_store"`
}

func newStatus(a *app) status {
	snap := a.sessions.Snapshot()
	st := status{
		State:      snap.State,
		User:       snap.User,
		Backend:    a.client.BaseURL(),
		TokenStore: a.cfg.TokenStore.Kind,
	}
	if snap.Token != "" {
		st.Fingerprint = auth.Fingerprint(snap.Token)
		if exp, err := auth.ExpiresAt(snap.Token); err == nil {
			st.ExpiresAt = &exp
		}
	}
	return st
}

// readPassword returns flagValue, or the first line of stdin when fromStdin is set.
func readPassword(cmd *cobra.Command, flagValue string, fromStdin bool) (string, error) {
	if !fromStdin {
		return flagValue, nil
	}
	lines, err := readLines(cmd, 1)
	if err != nil {
		return "", err
	}
	return lines[0], nil
}

// readLines reads n lines from stdin. Missing trailing lines are empty.
func readLines(cmd *cobra.Command, n int) ([]string, error) {
	r := bufio.NewReader(cmd.InOrStdin())
	lines := make([]string, n)
	for i := range lines {
		line, err := r.ReadString('\n')
		lines[i] = strings.TrimRight(line, "\r\n")
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}
	return lines, nil
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (visible in shell history; prefer --password-stdin)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")

	registerCmd.Flags().StringVar(&registerFirstName, "first-name", "", "first name")
	registerCmd.Flags().StringVar(&registerLastName, "last-name", "", "last name")
	registerCmd.Flags().StringVar(&registerEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&registerCountry, "country", "", "country")
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password (prefer --password-stdin)")
	registerCmd.Flags().BoolVar(&registerPasswordStdin, "password-stdin", false, "read the password from stdin")
	registerCmd.Flags().BoolVar(&registerAgree, "agree-to-terms", false, "accept the terms of service")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, refreshCmd, statusCmd)
}
