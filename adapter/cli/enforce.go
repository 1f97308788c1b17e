package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var enforceCmd = &cobra.Command{
	Use:   "enforce",
	Short: "Run one commission deadline pass",
	Long: `Expire overdue commissions and lock their providers out.

The store is named by the ENFORCER_* environment variables, read afresh on
every run. A missing or malformed value aborts the run before anything is
touched. The run summary is printed as JSON either way.

Examples:
  bookline enforce`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Enforcement == nil {
			return errors.New("enforcement not initialized")
		}

		summary, runErr := app.Enforcement.Run(cmd.Context())
		if summary != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("failed to print summary: %w", err)
			}
		}
		if runErr != nil {
			return fmt.Errorf("enforcement failed: %w", runErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enforceCmd)
}
