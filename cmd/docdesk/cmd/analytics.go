package cmd

import (
	"github.com/spf13/cobra"
)

var (
	usagePeriod    string
	healthDetailed bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show analytics",
}

var analyticsDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show dashboard statistics",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		out, err := a.client.DashboardStats(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd, out)
	}),
}

var analyticsUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show usage statistics for a period",
	Args:  cobra.NoArgs,
	RunE: withApp(true, func(cmd *cobra.Command, args []string, a *app) error {
		out, err := a.client.UsageStats(cmd.Context(), usagePeriod)
		if err != nil {
			return err
		}
		return printResult(cmd, out)
	}),
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend health",
	Long:  `Check backend health. No login is needed.`,
	Args:  cobra.NoArgs,
	RunE: withApp(false, func(cmd *cobra.Command, args []string, a *app) error {
		if healthDetailed {
			out, err := a.client.DetailedHealth(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, out)
		}
		h, err := a.client.Health(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(cmd, h)
	}),
}

func init() {
	analyticsUsageCmd.Flags().StringVar(&usagePeriod, "period", "7d", "period, e.g. 24h, 7d, 30d")
	healthCmd.Flags().BoolVar(&healthDetailed, "detailed", false, "include system details")

	analyticsCmd.AddCommand(analyticsDashboardCmd, analyticsUsageCmd)
	rootCmd.AddCommand(analyticsCmd, healthCmd)
}
