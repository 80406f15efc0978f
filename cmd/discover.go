package cmd

import (
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Record the API endpoints the web client currently uses.",
	Long: `Discover loads the main app screens in the managed browser and reports
every API request the pages made. Use it to refresh the endpoint table when
the vendor ships a new web client and the primary path starts falling back.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, session, err := newExecutor()
		if err != nil {
			return err
		}
		defer session.Close()

		observed, err := exec.DiscoverEndpoints(cmd.Context())
		if err != nil {
			return err
		}
		return emitJSON(observed)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
