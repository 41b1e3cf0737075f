package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var userFields []string

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		users, err := a.client.ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd, users)
	}),
}

var usersGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		user, err := a.client.GetUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, user)
	}),
}

var usersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a user",
	Long: `Update user fields. Each --set is key=value; values that parse as JSON
are sent as JSON, anything else as a string.

Example:
  docdesk users update 64f0c2 --set country=France --set age=37`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		fields, err := parseFields(userFields)
		if err != nil {
			return err
		}
		user, err := a.client.UpdateUser(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		return printResult(cmd, user)
	}),
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.client.DeleteUser(cmd.Context(), args[0]); err != nil {
			return err
		}
		printMessage(cmd, "Deleted user %s", args[0])
		return nil
	}),
}

var usersBulkDeleteCmd = &cobra.Command{
	Use:   "bulk-delete <criteria>",
	Short: "Delete users matching a backend criteria",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		out, err := a.client.BulkDeleteUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, out)
	}),
}

var usersBulkUpdateCmd = &cobra.Command{
	Use:   "bulk-update <criteria>",
	Short: "Update users matching a backend criteria",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		fields, err := parseFields(userFields)
		if err != nil {
			return err
		}
		out, err := a.client.BulkUpdateUsers(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		return printResult(cmd, out)
	}),
}

// parseFields turns key=value pairs into an update body.
func parseFields(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one --set key=value is required")
	}
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: want key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			fields[key] = decoded
		} else {
			fields[key] = value
		}
	}
	return fields, nil
}

func init() {
	for _, c := range []*cobra.Command{usersUpdateCmd, usersBulkUpdateCmd} {
		c.Flags().StringArrayVar(&userFields, "set", nil, "field to update as key=value (repeatable)")
	}

	usersCmd.AddCommand(
		usersListCmd,
		usersGetCmd,
		usersUpdateCmd,
		usersDeleteCmd,
		usersBulkDeleteCmd,
		usersBulkUpdateCmd,
	)
	rootCmd.AddCommand(usersCmd)
}
