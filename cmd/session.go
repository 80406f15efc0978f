package cmd

import (
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the persisted browser session.",
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Terminate the managed browser and discard all session artifacts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}
		if err := session.Reset(cmd.Context()); err != nil {
			return err
		}
		return emitJSON(map[string]string{"status": "session reset"})
	},
}

func init() {
	sessionCmd.AddCommand(sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}
