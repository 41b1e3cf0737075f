package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// printResult writes v to the command's stdout in the --output format.
// Raw backend payloads are decoded first so YAML renders them as documents
// rather than byte arrays.
func printResult(cmd *cobra.Command, v any) error {
	return writeResult(cmd.OutOrStdout(), outputFormat, v)
}

func writeResult(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		if raw, ok := v.(json.RawMessage); ok {
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			v = decoded
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// printMessage writes a human-readable line to stderr, leaving stdout for results.
func printMessage(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
