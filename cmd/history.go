package cmd

import (
	"github.com/spf13/cobra"
)

var (
	historyZapID string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent Zap runs, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, session, err := newExecutor()
		if err != nil {
			return err
		}
		defer session.Close()

		runs, err := exec.ViewHistory(cmd.Context(), historyZapID, historyLimit)
		if err != nil {
			return err
		}
		return emitJSON(runs)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyZapID, "zap", "", "only show runs of this Zap id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 25, "maximum number of runs to return")
	rootCmd.AddCommand(historyCmd)
}
