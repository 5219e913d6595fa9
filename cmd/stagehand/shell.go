package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/pkg/models"
)

// execShell is the built-in executor for the "shell" agent key. It runs the
// task command through the shell with the workflow context exported as
// STAGEHAND_CTX_* environment variables.
func execShell(ctx context.Context, task models.TaskSpec, workflowContext map[string]any) (engine.Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", task.Command)
	cmd.Env = shellEnv(workflowContext)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return engine.Result{}, fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return engine.Result{
		Output: map[string]any{
			"stdout": stdout.String(),
			"stderr": stderr.String(),
		},
	}, nil
}

// shellEnv extends the process environment with workflow context entries.
func shellEnv(workflowContext map[string]any) []string {
	env := os.Environ()
	for key, value := range workflowContext {
		env = append(env, fmt.Sprintf("STAGEHAND_CTX_%s=%v", strings.ToUpper(key), value))
	}
	return env
}
