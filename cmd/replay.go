package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var replayYes bool

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Re-execute a failed run.",
	Long: `Replay re-executes a run, which re-fires whatever side effects its steps
perform. The action requires confirmation unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		if err := confirmAction(cmd, replayYes, fmt.Sprintf("replay run %s", runID)); err != nil {
			return err
		}

		exec, session, err := newExecutor()
		if err != nil {
			return err
		}
		defer session.Close()

		result, err := exec.ReplayRun(cmd.Context(), runID)
		if err != nil {
			return err
		}
		return emitJSON(result)
	},
}

func init() {
	replayCmd.Flags().BoolVarP(&replayYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(replayCmd)
}
