package queue

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [action-id]",
	Short: "Drop a pending decision before it is delivered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Queue == nil {
			return errors.New("action queue not initialized - BOOKLINE_PROVIDER_ID required")
		}

		removed, err := app.Queue.Cancel(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to cancel: %w", err)
		}
		if !removed {
			return fmt.Errorf("action %s is not pending or is being delivered", args[0])
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Cancelled: %s\n", args[0])
		return nil
	},
}
