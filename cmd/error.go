package cmd

import (
	"github.com/spf13/cobra"
)

var errorCmd = &cobra.Command{
	Use:   "error <run-id>",
	Short: "Show the step-level detail of one run, including its error.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, session, err := newExecutor()
		if err != nil {
			return err
		}
		defer session.Close()

		detail, err := exec.ViewError(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emitJSON(detail)
	},
}

func init() {
	rootCmd.AddCommand(errorCmd)
}
