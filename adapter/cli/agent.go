package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the provider agent until interrupted",
	Long: `Run the provider agent in the foreground.

The agent probes the API, drains queued decisions whenever it is reachable
and keeps retrying in the background. Stop it with Ctrl-C.

Examples:
  BOOKLINE_PROVIDER_ID=... BOOKLINE_API_URL=https://api.example.com bookline agent`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Agent == nil {
			return errors.New("provider agent not configured - BOOKLINE_PROVIDER_ID required")
		}

		ctx := cmd.Context()
		if err := app.Agent.Start(ctx); err != nil {
			return fmt.Errorf("failed to start agent: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Agent running for provider %s. Press Ctrl-C to stop.\n", app.ProviderID)

		<-ctx.Done()
		app.Agent.Stop()

		if app.Synchronizer != nil {
			stats := app.Synchronizer.GetStats()
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped after %d cycles: %d applied, %d stale, %d quarantined.\n",
				stats.Cycles, stats.Applied, stats.Stale, stats.Quarantined)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentCmd)
}
