package commission

import (
	"github.com/spf13/cobra"
)

// Cmd is the commission command group
var Cmd = &cobra.Command{
	Use:   "commission",
	Short: "Settle platform commissions",
	Long:  `List a provider's commissions, record payment references and confirm payments.`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(payCmd)
	Cmd.AddCommand(confirmCmd)
}
