package cmd

import (
	"github.com/spf13/cobra"
)

var zapsCmd = &cobra.Command{
	Use:   "zaps",
	Short: "List every Zap on the account with its current status.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, session, err := newExecutor()
		if err != nil {
			return err
		}
		defer session.Close()

		zaps, err := exec.ListZaps(cmd.Context())
		if err != nil {
			return err
		}
		return emitJSON(zaps)
	},
}

func init() {
	rootCmd.AddCommand(zapsCmd)
}
