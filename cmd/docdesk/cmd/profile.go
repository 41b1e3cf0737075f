package cmd

import (
	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/domain/auth"
)

var (
	profileFirstName string
	profileLastName  string
	profileEmail     string
	profileCountry   string

	passwordCurrent string
	passwordNew     string
	passwordStdin   bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change your profile",
	Args:  cobra.NoArgs,
	RunE:  profileShowCmd.RunE,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		if err := a.sessions.LoadUser(cmd.Context()); err != nil {
			return err
		}
		return printResult(cmd, a.sessions.Snapshot().User)
	}),
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update your name, email or country",
	Long: `Update profile fields. Only the flags you pass are sent.

Example:
  docdesk profile update --country France`,
	Args: cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		upd := auth.ProfileUpdate{
			FirstName: profileFirstName,
			LastName:  profileLastName,
			Email:     profileEmail,
			Country:   profileCountry,
		}
		user, err := a.sessions.UpdateProfile(cmd.Context(), upd)
		if err != nil {
			return err
		}
		return printResult(cmd, user)
	}),
}

var profilePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	Long: `Change your password. With --password-stdin the first line of stdin is the
current password and the second the new one.`,
	Args: cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		pc := auth.PasswordChange{CurrentPassword: passwordCurrent, NewPassword: passwordNew}
		if passwordStdin {
			lines, err := readLines(cmd, 2)
			if err != nil {
				return err
			}
			pc.CurrentPassword, pc.NewPassword = lines[0], lines[1]
		}
		if err := pc.Validate(); err != nil {
			return err
		}
		if err := a.client.ChangePassword(cmd.Context(), pc); err != nil {
			return err
		}
		printMessage(cmd, "Password changed")
		return nil
	}),
}

func init() {
	profileUpdateCmd.Flags().StringVar(&profileFirstName, "first-name", "", "new first name")
	profileUpdateCmd.Flags().StringVar(&profileLastName, "last-name", "", "new last name")
	profileUpdateCmd.Flags().StringVar(&profileEmail, "email", "", "new email")
	profileUpdateCmd.Flags().StringVar(&profileCountry, "country", "", "new country")

	profilePasswordCmd.Flags().StringVar(&passwordCurrent, "current", "", "current password")
	profilePasswordCmd.Flags().StringVar(&passwordNew, "new", "", "new password")
	profilePasswordCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read current and new password from stdin")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profilePasswordCmd)
	rootCmd.AddCommand(profileCmd)
}
