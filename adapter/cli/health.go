package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check CLI wiring health",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return errors.New("app not initialized")
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "action queue:  %s\n", wired(app.Queue != nil))
		fmt.Fprintf(out, "record store:  %s\n", wired(app.Ledger != nil))
		fmt.Fprintf(out, "enforcement:   %s\n", wired(app.Enforcement != nil))
		if app.Queue == nil && app.Ledger == nil {
			return errors.New("nothing is configured")
		}
		return nil
	},
}

func wired(ok bool) string {
	if ok {
		return "ok"
	}
	return "not configured"
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
