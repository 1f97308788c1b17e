package queue

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry [action-id]",
	Short: "Return a quarantined decision to the queue",
	Long: `Give a quarantined decision a fresh retry budget. It is delivered on
the next sync.

Examples:
  bookline queue list --quarantined
  bookline queue retry accept_550e8400-e29b-41d4-a716-446655440000_1767225600000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Queue == nil {
			return errors.New("action queue not initialized - BOOKLINE_PROVIDER_ID required")
		}

		ok, err := app.Queue.Requeue(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to requeue: %w", err)
		}
		if !ok {
			return fmt.Errorf("action %s is not quarantined", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Requeued: %s\n", args[0])
		return nil
	},
}
