package provider

import (
	"github.com/spf13/cobra"
)

// Cmd is the provider command group
var Cmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage provider lockouts",
}

func init() {
	Cmd.AddCommand(reactivateCmd)
}
