package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigl34/zapctl/internal/mcpclient"
)

var (
	invokeParamsJSON string
	invokeYes        bool
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Work with the vendor's hosted MCP action catalog.",
}

var actionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every action the MCP server exposes for this account.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := mcpclient.New(appConfig, logger())
		if err := client.Connect(cmd.Context()); err != nil {
			return err
		}
		defer client.Close()

		actions, err := client.ListActions(cmd.Context())
		if err != nil {
			return err
		}
		return emitJSON(actions)
	},
}

var actionsInvokeCmd = &cobra.Command{
	Use:   "invoke <action-name>",
	Short: "Invoke one MCP action with JSON parameters.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		var actionArgs map[string]any
		if invokeParamsJSON != "" {
			if err := json.Unmarshal([]byte(invokeParamsJSON), &actionArgs); err != nil {
				return fmt.Errorf("--params is not a JSON object: %w", err)
			}
		}

		if err := confirmAction(cmd, invokeYes, fmt.Sprintf("invoke action %q", name)); err != nil {
			return err
		}

		client := mcpclient.New(appConfig, logger())
		if err := client.Connect(cmd.Context()); err != nil {
			return err
		}
		defer client.Close()

		result, err := client.Invoke(cmd.Context(), name, actionArgs)
		if err != nil {
			return err
		}
		return emitJSON(result)
	},
}

func init() {
	actionsInvokeCmd.Flags().StringVar(&invokeParamsJSON, "params", "", "action parameters as a JSON object")
	actionsInvokeCmd.Flags().BoolVarP(&invokeYes, "yes", "y", false, "skip the confirmation prompt")
	actionsCmd.AddCommand(actionsListCmd, actionsInvokeCmd)
	rootCmd.AddCommand(actionsCmd)
}
