package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/pkg/flow"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the flow. With --session the
visited steps and the current step of that session are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		variant, err := variantOf(cfg)
		if err != nil {
			return err
		}
		def := flow.DefaultDefinition()
		if cfg.Flow.Definition != "" {
			if def, err = flow.LoadDefinitionFile(cfg.Flow.Definition); err != nil {
				return err
			}
		}
		g, err := def.Compile(variant)
		if err != nil {
			return err
		}

		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			steps := make([]triage.StepView, 0, g.Len())
			for _, st := range g.Steps() {
				steps = append(steps, triage.DescribeStep(st))
			}
			data, err := json.MarshalIndent(steps, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		var overlay *graph.Overlay
		if id, _ := cmd.Flags().GetString("session"); id != "" {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			s, err := app.Wizard.Session(cmd.Context(), id)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFor(s)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("format", "mermaid", "Output format: mermaid or json")
	graphCmd.Flags().String("session", "", "Highlight the path of a stored session")
}
