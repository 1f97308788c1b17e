package queue

import (
	"github.com/spf13/cobra"
)

// Cmd is the queue command group
var Cmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage queued provider decisions",
	Long: `Queue accept and reject decisions while offline, inspect what is
waiting and retry actions that were quarantined after repeated failures.`,
}

func init() {
	Cmd.AddCommand(enqueueCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(retryCmd)
	Cmd.AddCommand(syncCmd)
}
