package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/config"
	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/loader"
)

var validateDefinitions string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate workflow definition files",
	Long: `Validate every workflow definition in the definitions directory.

Each file is parsed and registered against a scratch registry, surfacing
duplicate task IDs, dependencies on unknown tasks, and dependency cycles.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateDefinitions, "definitions", "", "Directory of workflow definition YAML files")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defsDir := validateDefinitions
	if defsDir == "" {
		defsDir = cfg.Paths.Definitions
	}

	specs, err := loader.LoadDir(defsDir)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		fmt.Printf("No workflow definitions found in %s\n", defsDir)
		return nil
	}

	registry := engine.NewWorkflowRegistry()
	invalid := 0
	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			fmt.Printf("%s %s: %v\n", color.RedString("✗"), spec.Name, err)
			invalid++
			continue
		}
		fmt.Printf("%s %s (%d tasks)\n", color.GreenString("✓"), spec.Name, len(spec.Tasks))
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d workflow definitions are invalid", invalid, len(specs))
	}
	return nil
}
