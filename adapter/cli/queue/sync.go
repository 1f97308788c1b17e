package queue

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Deliver due decisions now",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Synchronizer == nil {
			return errors.New("action queue not initialized - BOOKLINE_PROVIDER_ID required")
		}

		report, err := app.Synchronizer.SyncOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Applied: %d  Stale: %d  Retrying: %d  Deferred: %d\n",
			report.Applied, report.Stale, report.Retried, report.Deferred)
		for _, q := range report.Quarantined {
			fmt.Fprintf(out, "Quarantined: %s (%s)\n", q.ID, q.LastError)
		}
		return nil
	},
}
