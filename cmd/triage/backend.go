package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/pkg/adapters/remote"
)

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Serve the mock triage service over HTTP",
	Long: `Runs the built-in mock of the remote triage service so the client, the
API and the MCP server can be exercised against a real HTTP endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := cli.NewLogger(os.Stderr, cfg.Log)

		var opts []remote.MockOption
		if auth, _ := cmd.Flags().GetBool("require-auth"); auth {
			opts = append(opts, remote.WithAuthRequired())
		}
		addr, _ := cmd.Flags().GetString("addr")
		return serveHTTP(cmd.Context(), addr, remote.NewBackend(remote.NewMock(opts...), logger), logger.Info)
	},
}

func init() {
	rootCmd.AddCommand(backendCmd)
	backendCmd.Flags().String("addr", ":8081", "Address to listen on")
	backendCmd.Flags().Bool("require-auth", false, "Reject submissions without a valid token")
}
