package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/triage/internal/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List submitted reports, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if wipe, _ := cmd.Flags().GetBool("clear"); wipe {
			return app.Wizard.ClearHistory(cmd.Context())
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return cli.PrintHistory(cmd.Context(), app, cmd.OutOrStdout(), asJSON)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Bool("json", false, "Print the full records as JSON")
	historyCmd.Flags().Bool("clear", false, "Delete every stored report")
}
