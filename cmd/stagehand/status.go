package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/config"
	"github.com/stagehand-dev/stagehand/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show archived workflow runs",
	Long: `Display archived workflow runs from the run database.

Without arguments, lists recent runs newest first. With a run ID, shows the
per-task breakdown for that run: status, attempts, confidence, and any
reviewer note.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Maximum number of runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := cfg.Paths.Database
	if dbPath == "" {
		dbPath = state.ProjectDBPath(cwd)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No archived runs. Run 'stagehand run <workflow>' to start one.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(args) == 1 {
		return showRun(db, args[0])
	}
	return listRuns(db)
}

// listRuns prints recent archived runs.
func listRuns(db *state.DB) error {
	records, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %s  %s  %d/%d tasks completed\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			statusString(rec.Status),
			rec.ID,
			rec.Completed, rec.Total)
	}
	return nil
}

// showRun prints one archived run with per-task detail.
func showRun(db *state.DB, runID string) error {
	rec, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("run %q not found", runID)
	}

	fmt.Printf("Run %s (workflow %s)\n", rec.ID, rec.Workflow)
	fmt.Printf("Status: %s\n", statusString(rec.Status))
	if rec.ErrorDetails != "" {
		fmt.Printf("Error: %s\n", color.RedString(rec.ErrorDetails))
	}
	fmt.Printf("Tasks: %d completed, %d failed, %d skipped of %d\n\n",
		rec.Completed, rec.Failed, rec.Skipped, rec.Total)

	for _, task := range rec.Tasks {
		line := fmt.Sprintf("  %s  %s  attempts=%d", statusString(task.Status), task.TaskID, task.Attempts)
		if task.Confidence != nil {
			line += fmt.Sprintf("  confidence=%.2f", *task.Confidence)
		}
		fmt.Println(line)
		if task.Error != "" {
			fmt.Printf("      %s\n", color.New(color.Faint).Sprint(task.Error))
		}
		if task.ReviewNote != "" {
			fmt.Printf("      review: %s\n", task.ReviewNote)
		}
	}
	return nil
}

// statusString colors a status word for terminal output.
func statusString(status string) string {
	switch status {
	case "completed":
		return color.GreenString("%-10s", status)
	case "failed":
		return color.RedString("%-10s", status)
	case "cancelled", "skipped", "review_pending":
		return color.YellowString("%-10s", status)
	default:
		return fmt.Sprintf("%-10s", status)
	}
}
