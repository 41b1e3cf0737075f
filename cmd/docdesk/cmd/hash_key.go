package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/domain/auth"
)

var hashKeyStdin bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [access-key]",
	Short: "Generate an argon2id hash for the console access key",
	Long: `Generate an argon2id hash of a console access key for use in config.

The output can be used directly as console.access_key_hash or
DOCDESK_CONSOLE_ACCESS_KEY_HASH.

Example:
  docdesk hash-key "my-console-key"
  # Output: $argon2id$v=19$m=...

Security note: The key will appear in shell history. Prefer --stdin:
  docdesk hash-key --stdin < key.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := accessKeyInput(cmd, args)
		if err != nil {
			return err
		}
		hash, err := auth.HashAccessKey(key)
		if err != nil {
			return fmt.Errorf("hash access key: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyStdin, "stdin", false, "read the key from the first line of stdin")
	rootCmd.AddCommand(hashKeyCmd)
}

func accessKeyInput(cmd *cobra.Command, args []string) (string, error) {
	var key string
	switch {
	case hashKeyStdin && len(args) > 0:
		return "", errors.New("pass the key as an argument or with --stdin, not both")
	case hashKeyStdin:
		lines, err := readLines(cmd, 1)
		if err != nil {
			return "", err
		}
		key = lines[0]
	case len(args) == 1:
		key = args[0]
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("access key must not be empty")
	}
	return key, nil
}
