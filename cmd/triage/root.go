package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/triage/internal/cli"
	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage is a guided symptom questionnaire with remote assessment",
	Long: `Triage walks a patient through a branching questionnaire, submits the
answers to a triage service and keeps the resulting reports.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.String("config", "", "YAML configuration file")
	f.StringSlice("env-file", []string{".env"}, "Files with TRIAGE_* variables to load")
	f.String("store", "", "Store driver: memory, file, bolt, redis or postgres")
	f.String("store-path", "", "Directory of the file store or bolt database file")
	f.String("store-url", "", "Redis address or postgres DSN")
	f.String("remote", "", "Base URL of the triage service (empty uses the built-in mock)")
	f.String("flow", "", "YAML flow definition (empty uses the embedded flow)")
	f.String("variant", "", "Prompt variant: bilingual or plain")
	f.String("log-level", "", "Log level: DEBUG, INFO, WARN or ERROR")
	f.String("log-format", "", "Log format: text or json")
}

// loadConfig resolves defaults, the config file, the environment and
// finally the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if cfg == nil {
		return nil, err
	}

	override := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	override("store", &cfg.Store.Driver)
	override("store-path", &cfg.Store.Path)
	override("store-url", &cfg.Store.URL)
	override("remote", &cfg.Remote.URL)
	override("flow", &cfg.Flow.Definition)
	override("variant", &cfg.Flow.Variant)
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openApp wires the wizard for commands that need one.
func openApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := cli.NewLogger(os.Stderr, cfg.Log)
	return cli.NewApp(cmd.Context(), cfg, logger)
}

func variantOf(cfg *config.Config) (domain.Variant, error) {
	return flow.ParseVariant(cfg.Flow.Variant)
}
