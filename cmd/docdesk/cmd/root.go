// Package cmd provides the CLI commands for docdesk.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/config"
)

var (
	cfgFile      string
	envFile      string
	outputFormat string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "docdesk",
	Short: "docdesk - document management client",
	Long: `docdesk talks to the document-management backend on your behalf.

It keeps your session between runs, refreshes the bearer token when the
backend rejects it, and serves a small web console for browsing documents.

Quick start:
  1. Point it at the backend: export DOCDESK_BACKEND_URL=http://localhost:5000
  2. Log in: docdesk login --email you@example.com --password-stdin
  3. List documents: docdesk documents list

Configuration:
  Config is loaded from docdesk.yaml in the current directory or
  $HOME/.docdesk/. A .env file in the current directory is read first.

  Environment variables override config values with the DOCDESK_ prefix.
  Example: DOCDESK_CONSOLE_ADDR=127.0.0.1:4000

Commands:
  login       Log in and store the session token
  register    Create an account
  logout      End the session
  refresh     Trade the stored token for a new one
  status      Show the session state
  profile     Show or change your profile
  documents   Manage documents
  users       Manage users
  analytics   Show analytics
  health      Check backend health
  console     Serve the web console
  reset       Remove the stored session
  hash-key    Hash a console access key
  version     Print version information`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for an expired or missing session and 1 for anything else.
func exitCode(err error) int {
	if errors.Is(err, errSessionExpired) || errors.Is(err, errNotLoggedIn) {
		return 2
	}
	return 1
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./docdesk.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}
	config.InitViper(cfgFile)
}
