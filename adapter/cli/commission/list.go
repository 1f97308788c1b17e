package commission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list [provider-id]",
	Short:   "List a provider's commissions",
	Aliases: []string{"ls"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Ledger == nil {
			return errors.New("application not initialized - database connection required")
		}

		providerID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid provider ID: %w", err)
		}

		records, err := app.Ledger.ListByProvider(cmd.Context(), providerID)
		if err != nil {
			return fmt.Errorf("failed to list commissions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No commissions found.")
			return nil
		}

		now := time.Now()
		fmt.Fprintf(out, "Commissions (%d):\n", len(records))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, r := range records {
			marker := ""
			if r.IsOverdue(now) {
				marker = " [OVERDUE]"
			}
			fmt.Fprintf(out, "%s %s %s%s\n", statusIcon(r.Status), formatMinor(r.AmountMinor), r.Currency, marker)
			fmt.Fprintf(out, "   ID: %s\n", r.ID)
			fmt.Fprintf(out, "   Booking: %s\n", r.BookingID)
			fmt.Fprintf(out, "   Deadline: %s\n", r.DeadlineAt.Local().Format(time.DateTime))
			if r.PaymentReference != "" {
				fmt.Fprintf(out, "   Reference: %s\n", r.PaymentReference)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func statusIcon(s domain.Status) string {
	switch s {
	case domain.StatusPaid:
		return "[x]"
	case domain.StatusAwaitingVerification:
		return "[?]"
	case domain.StatusExpired:
		return "[!]"
	default:
		return "[ ]"
	}
}

func formatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
