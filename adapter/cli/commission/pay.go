package commission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reference string

var payCmd = &cobra.Command{
	Use:   "pay [commission-id]",
	Short: "Record a payment reference for verification",
	Long: `Record the provider's payment reference. The commission waits for an
operator to confirm it and still counts against the deadline until then.

Examples:
  bookline commission pay 550e8400-e29b-41d4-a716-446655440000 --reference TX-2026-0042`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Ledger == nil {
			return errors.New("application not initialized - database connection required")
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid commission ID: %w", err)
		}
		if strings.TrimSpace(reference) == "" {
			return errors.New("--reference is required")
		}

		rec, err := app.Ledger.SubmitPayment(cmd.Context(), id, reference)
		if err != nil {
			return fmt.Errorf("failed to submit payment: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Payment submitted: %s (%s)\n", rec.ID, rec.Status)
		return nil
	},
}

func init() {
	payCmd.Flags().StringVar(&reference, "reference", "", "payment reference (required)")
}
