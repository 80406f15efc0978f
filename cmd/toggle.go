package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	toggleState string
	toggleYes   bool
)

var toggleCmd = &cobra.Command{
	Use:   "toggle <zap-id>",
	Short: "Turn a Zap on or off.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zapID := args[0]
		var enable bool
		switch toggleState {
		case "on":
			enable = true
		case "off":
			enable = false
		default:
			return fmt.Errorf("invalid --state %q: must be \"on\" or \"off\"", toggleState)
		}

		verb := "disable"
		if enable {
			verb = "enable"
		}
		if err := confirmAction(cmd, toggleYes, fmt.Sprintf("%s Zap %s", verb, zapID)); err != nil {
			return err
		}

		exec, session, err := newExecutor()
		if err != nil {
			return err
		}
		defer session.Close()

		result, err := exec.ToggleZap(cmd.Context(), zapID, enable)
		if err != nil {
			return err
		}
		return emitJSON(result)
	},
}

func init() {
	toggleCmd.Flags().StringVar(&toggleState, "state", "", `target state: "on" or "off"`)
	toggleCmd.Flags().BoolVarP(&toggleYes, "yes", "y", false, "skip the confirmation prompt")
	toggleCmd.MarkFlagRequired("state")
	rootCmd.AddCommand(toggleCmd)
}
