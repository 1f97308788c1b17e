package commission

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var confirmActor string

var confirmCmd = &cobra.Command{
	Use:   "confirm [commission-id]",
	Short: "Confirm a commission as paid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Ledger == nil {
			return errors.New("application not initialized - database connection required")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid commission ID: %w", err)
		}

		rec, err := app.Ledger.ConfirmPayment(cmd.Context(), id, confirmActor)
		if err != nil {
			return fmt.Errorf("failed to confirm payment: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Commission paid: %s\n", rec.ID)
		return nil
	},
}

func init() {
	confirmCmd.Flags().StringVar(&confirmActor, "actor", "operator:cli", "who confirmed the payment")
}
