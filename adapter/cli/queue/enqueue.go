package queue

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reason string

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [accept|reject] [booking-id]",
	Short: "Queue a decision on a booking",
	Long: `Queue an accept or reject decision. The decision is stored locally
and delivered by the agent or by 'bookline queue sync'.

Examples:
  bookline queue enqueue accept 550e8400-e29b-41d4-a716-446655440000
  bookline queue enqueue reject 550e8400-e29b-41d4-a716-446655440000 --reason "too far"`,
	Aliases: []string{"add"},
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Queue == nil {
			return errors.New("action queue not initialized - BOOKLINE_PROVIDER_ID required")
		}

		action, err := bookingDomain.ParseAction(args[0])
		if err != nil {
			return err
		}
		bookingID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid booking ID: %w", err)
		}

		id, err := app.Queue.Enqueue(cmd.Context(), action, bookingID, app.ProviderID, reason)
		if err != nil {
			return fmt.Errorf("failed to queue %s: %w", action, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Queued: %s\n", id)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVarP(&reason, "reason", "r", "", "reason shown to the customer (reject only)")
}
