package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/adapter/outbound/tokenstore"
	"github.com/docdesk/docdesk/internal/config"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the persisted session",
	Long: `Remove the persisted session from disk without contacting the backend.

Use this when the token store is corrupt or the backend is unreachable and
"docdesk logout" cannot complete. For the file store this removes the token
file and its backup, lock and temp files; for the sqlite store the database
and its WAL files.

Optional flags:
  --force           Skip confirmation prompt

Examples:
  # Interactive confirmation
  docdesk reset

  # No prompt
  docdesk reset --force`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

type resetTarget struct {
	path string
	desc string
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		// Reset must work with a broken config; fall back to defaults.
		cfg = &config.Config{}
	}
	cfg.SetDefaults()

	stderr := cmd.ErrOrStderr()
	targets := resetTargets(cfg.TokenStore.Kind, cfg.TokenStore.Path)

	var existing []resetTarget
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}

	if len(existing) == 0 {
		fmt.Fprintln(stderr, "Nothing to reset: no session files found.")
		return nil
	}

	fmt.Fprintln(stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce {
		fmt.Fprint(stderr, "\nProceed? [y/N] ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(stderr, "Aborted.")
			return nil
		}
	}

	var failed int
	for _, t := range existing {
		if err := os.Remove(t.path); err != nil {
			fmt.Fprintf(stderr, "  ERROR removing %s: %v\n", t.path, err)
			failed++
		} else {
			fmt.Fprintf(stderr, "  Removed %s\n", t.path)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be removed", failed)
	}

	fmt.Fprintln(stderr, "\nReset complete. Run \"docdesk login\" to start a new session.")
	return nil
}

// resetTargets lists the files a token store of kind may leave at path.
// Memory and none stores keep nothing on disk.
func resetTargets(kind, path string) []resetTarget {
	if path == "" {
		return nil
	}
	switch kind {
	case config.TokenStoreFile, "":
		descs := []string{"token file", "token backup", "lock file", "temp file"}
		var targets []resetTarget
		for i, p := range tokenstore.NewFileStore(path, nil).Artifacts() {
			targets = append(targets, resetTarget{p, descs[i]})
		}
		return targets
	case config.TokenStoreSQLite:
		return []resetTarget{
			{path, "token database"},
			{path + "-wal", "write-ahead log"},
			{path + "-shm", "shared memory file"},
		}
	default:
		return nil
	}
}
