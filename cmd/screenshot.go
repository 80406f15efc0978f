package cmd

import (
	"github.com/spf13/cobra"
)

var screenshotName string

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture what the managed browser is currently showing.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession()
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.EnsureReady(cmd.Context()); err != nil {
			return err
		}
		path, err := session.Screenshot(cmd.Context(), screenshotName)
		if err != nil {
			return err
		}
		return emitJSON(map[string]string{"screenshot": path})
	},
}

func init() {
	screenshotCmd.Flags().StringVar(&screenshotName, "name", "", "screenshot file name; without an extension it is used as a timestamped prefix")
	rootCmd.AddCommand(screenshotCmd)
}
