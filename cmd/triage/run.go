package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/triage/internal/cli"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer the questionnaire in the terminal",
	Long: `Starts a session and walks it to submission. On a terminal the steps are
shown as forms; otherwise answers are read line by line from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		variant, err := variantOf(app.Config)
		if err != nil {
			return err
		}
		headless, _ := cmd.Flags().GetBool("headless")
		plain, _ := cmd.Flags().GetBool("plain")
		token, _ := cmd.Flags().GetString("token")

		_, err = cli.RunWizard(cmd.Context(), app, os.Stdin, os.Stdout, cli.RunOptions{
			Variant:  variant,
			Headless: headless,
			Plain:    plain,
			Token:    token,
		})
		return cli.HandleExecutionError(err)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "No banner or prompts; print the JSON report")
	runCmd.Flags().Bool("plain", false, "Use line prompts even on a terminal")
	runCmd.Flags().String("token", "", "Auth token to use instead of the stored one")

	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
