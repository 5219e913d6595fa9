package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stagehand",
	Short: "Dependency-ordered workflow orchestrator",
	Long: `Stagehand coordinates execution of interdependent tasks across named
executors, according to a declared dependency graph.

Workflows are defined as YAML files: each task names the agent that performs
it, the tasks it depends on, and its retry and review policy. Stagehand
partitions the graph into dependency groups and runs them in order, with
bounded concurrency inside each group, automatic retries, and
confidence-gated human review.

Core capabilities:
- Validates workflow definitions (duplicate IDs, unknown dependencies, cycles)
- Runs dependency groups with a configurable parallelism bound
- Retries failed tasks against a per-task budget
- Gates low-confidence results on human approval
- Archives finished runs for later inspection`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
