package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/config"
	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/loader"
	"github.com/stagehand-dev/stagehand/internal/state"
	"github.com/stagehand-dev/stagehand/pkg/models"
)

var (
	runDefinitions string
	runContext     []string
	runWatch       bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a registered workflow to completion",
	Long: `Run a workflow by name.

Workflow definitions are loaded from the definitions directory (--definitions,
default from config). Tasks whose agent key is "shell" execute their command
via the shell; other agent keys require an executor registered by embedding
code and will fail with an executor-not-found error.

Caller context is passed with repeated --context key=value flags and is
visible to every task, read-only.

The command streams lifecycle events while the run executes and exits
non-zero if the workflow fails. Interrupting with Ctrl-C cancels the run:
groups that have not started will never dispatch, but tasks already running
are not interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDefinitions, "definitions", "", "Directory of workflow definition YAML files")
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "Workflow context entry as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Keep registering definitions as files change while the run executes")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	defsDir := runDefinitions
	if defsDir == "" {
		defsDir = cfg.Paths.Definitions
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	db, err := openRunStore(cfg, cwd)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	eng := engine.New(
		engine.WithLogger(engine.NewDebugLoggerForDir(cwd)),
		engine.WithRunStore(db),
		engine.WithReviewThreshold(cfg.Review.ConfidenceThreshold),
		engine.WithReviewTimeout(cfg.Review.Timeout),
		engine.WithRetryDelay(cfg.Retry.Delay),
		engine.WithDefaultMaxParallel(cfg.Defaults.MaxParallel),
	)
	defer eng.Close()

	specs, err := loader.LoadDir(defsDir)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if err := eng.RegisterWorkflow(spec); err != nil {
			return err
		}
	}

	eng.RegisterExecutor("shell", engine.ExecutorFunc(execShell))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runWatch {
		watcher, err := loader.NewWatcher(defsDir, eng.RegisterWorkflow)
		if err != nil {
			return err
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	workflowContext, err := parseContext(runContext)
	if err != nil {
		return err
	}

	subscribeOutput(eng)

	runID, err := eng.StartWorkflow(args[0], workflowContext)
	if err != nil {
		return err
	}
	fmt.Printf("Started run %s\n", color.CyanString(runID))

	// Translate Ctrl-C into a cooperative cancel, then keep waiting for
	// in-flight tasks to drain.
	go func() {
		<-ctx.Done()
		_ = eng.CancelWorkflow(runID)
	}()

	if err := eng.Wait(context.Background(), runID); err != nil {
		return err
	}

	snap, err := eng.GetStatus(runID)
	if err != nil {
		return err
	}
	printSummary(snap)

	if snap.Status == models.WorkflowStatusFailed {
		return fmt.Errorf("workflow failed: %s", snap.ErrorDetails)
	}
	return nil
}

// openRunStore opens the configured database, falling back to the
// project-local path.
func openRunStore(cfg *config.Config, cwd string) (*state.DB, error) {
	path := cfg.Paths.Database
	if path == "" {
		path = state.ProjectDBPath(cwd)
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// parseContext turns key=value flags into a workflow context map.
func parseContext(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --context entry %q, want key=value", entry)
		}
		out[key] = value
	}
	return out, nil
}

// subscribeOutput prints lifecycle events as they happen.
func subscribeOutput(eng *engine.Engine) {
	bus := eng.Bus()
	bus.Subscribe(engine.EventTaskStarted, func(ev engine.Event) {
		fmt.Printf("  %s %s\n", color.YellowString("▸"), ev.TaskID)
	})
	bus.Subscribe(engine.EventTaskCompleted, func(ev engine.Event) {
		fmt.Printf("  %s %s\n", color.GreenString("✓"), ev.TaskID)
	})
	bus.Subscribe(engine.EventTaskFailed, func(ev engine.Event) {
		fmt.Printf("  %s %s: %s\n", color.RedString("✗"), ev.TaskID, ev.Message)
	})
	bus.Subscribe(engine.EventTaskSkipped, func(ev engine.Event) {
		fmt.Printf("  %s %s (skipped: %s)\n", color.New(color.Faint).Sprint("-"), ev.TaskID, ev.Message)
	})
	bus.Subscribe(engine.EventReviewRequested, func(ev engine.Event) {
		confidence := "n/a"
		if ev.Confidence != nil {
			confidence = fmt.Sprintf("%.2f", *ev.Confidence)
		}
		fmt.Printf("  %s %s awaiting review (confidence %s)\n", color.MagentaString("?"), ev.TaskID, confidence)
	})
}

// printSummary renders the final run snapshot.
func printSummary(snap engine.Snapshot) {
	var statusText string
	switch snap.Status {
	case models.WorkflowStatusCompleted:
		statusText = color.GreenString(string(snap.Status))
	case models.WorkflowStatusFailed:
		statusText = color.RedString(string(snap.Status))
	case models.WorkflowStatusCancelled:
		statusText = color.YellowString(string(snap.Status))
	default:
		statusText = string(snap.Status)
	}

	fmt.Printf("\nRun %s: %s\n", snap.RunID, statusText)
	fmt.Printf("  completed %d, failed %d, skipped %d of %d tasks\n",
		snap.Metrics.Completed, snap.Metrics.Failed, snap.Metrics.Skipped, snap.Metrics.Total)
	if snap.EndedAt != nil {
		fmt.Printf("  duration %s\n", snap.EndedAt.Sub(snap.StartedAt).Round(time.Millisecond))
	}
}
