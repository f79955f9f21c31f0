package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/triage/internal/validator"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow.yaml]",
	Short: "Check a flow definition for consistency",
	Long: `Compiles the flow for every variant and reports dead links, unreachable
steps, missing answer keys and unregistered computations. Without an
argument the configured or embedded flow is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) > 0 {
			path = args[0]
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Flow.Definition
		}

		def := flow.DefaultDefinition()
		if path != "" {
			var err error
			if def, err = flow.LoadDefinitionFile(path); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		rep := validator.ValidateDefinition(def, registry.Default(nil, nil))
		for _, w := range rep.Warnings {
			fmt.Fprintln(out, "warning:", w)
		}
		if err := rep.Err(); err != nil {
			return errors.Join(errors.New("validation failed"), err)
		}
		fmt.Fprintln(out, "Flow is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
