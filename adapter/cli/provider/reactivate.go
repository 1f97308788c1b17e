package provider

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	commissionApp "github.com/felixgeelhaar/bookline/internal/commission/application"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	actor string
	note  string
)

var reactivateCmd = &cobra.Command{
	Use:   "reactivate [provider-id]",
	Short: "Lift a commission lockout",
	Long: `Re-enable a provider that was deactivated for an overdue commission.
Refused while any commission is still overdue. The provider comes back
offline and has to go available on their own.

Examples:
  bookline provider reactivate 550e8400-e29b-41d4-a716-446655440000 --note "paid by bank transfer"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Reactivator == nil {
			return errors.New("application not initialized - database connection required")
		}

		providerID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid provider ID: %w", err)
		}

		a, err := app.Reactivator.Reactivate(cmd.Context(), commissionApp.ReactivateCommand{
			ProviderID: providerID,
			Actor:      actor,
			Note:       note,
		})
		if err != nil {
			return fmt.Errorf("failed to reactivate provider: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Provider reactivated: %s (status %s)\n", a.ProviderID, a.Status)
		return nil
	},
}

func init() {
	reactivateCmd.Flags().StringVar(&actor, "actor", "operator:cli", "who lifted the lockout")
	reactivateCmd.Flags().StringVar(&note, "note", "", "note recorded in the audit log")
}
