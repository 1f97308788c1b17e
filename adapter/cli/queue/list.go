package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/felixgeelhaar/bookline/internal/actionqueue"
	"github.com/spf13/cobra"
)

var showQuarantined bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued decisions",
	Long: `List decisions waiting for delivery, oldest first.

Examples:
  bookline queue list
  bookline queue list --quarantined`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Queue == nil {
			return errors.New("action queue not initialized - BOOKLINE_PROVIDER_ID required")
		}

		ctx := cmd.Context()
		var (
			actions []*actionqueue.QueuedAction
			err     error
		)
		if showQuarantined {
			actions, err = app.Queue.ListQuarantined(ctx)
		} else {
			actions, err = app.Queue.ListPending(ctx)
		}
		if err != nil {
			return fmt.Errorf("failed to list queue: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(actions) == 0 {
			fmt.Fprintln(out, "Queue is empty.")
			return nil
		}

		fmt.Fprintf(out, "Queued actions (%d):\n", len(actions))
		fmt.Fprintln(out, strings.Repeat("-", 60))
		for _, a := range actions {
			fmt.Fprintf(out, "%s %s %s\n", stateIcon(a.State), a.Action, a.BookingID)
			fmt.Fprintf(out, "   ID: %s\n", a.ID)
			fmt.Fprintf(out, "   Queued: %s\n", a.EnqueuedAt.Local().Format(time.DateTime))
			if a.Retries > 0 {
				fmt.Fprintf(out, "   Retries: %d\n", a.Retries)
			}
			if a.LastError != "" {
				fmt.Fprintf(out, "   Last error: %s\n", a.LastError)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func stateIcon(s actionqueue.State) string {
	if s == actionqueue.StateQuarantined {
		return "[!]"
	}
	return "[ ]"
}

func init() {
	listCmd.Flags().BoolVarP(&showQuarantined, "quarantined", "q", false, "show quarantined actions instead of pending ones")
}
