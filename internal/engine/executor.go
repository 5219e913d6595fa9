package engine

import (
	"context"
	"sync"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// Result is the output of one task execution attempt.
type Result struct {
	// Output is the opaque result payload produced by the executor.
	Output map[string]any
	// Confidence is an optional 0-1 score indicating how trustworthy the
	// output is. Results below the review threshold are gated on human
	// approval before dependents may proceed.
	Confidence *float64
}

// Executor performs the actual work for a task. Implementations are external
// collaborators (for example an LLM-backed agent) looked up by the task's
// agent key. An executor must be idempotent-safe under retry and is never
// invoked concurrently for the same task run. The workflow context is
// read-only and must not be mutated.
type Executor interface {
	Execute(ctx context.Context, task models.TaskSpec, workflowContext map[string]any) (Result, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task models.TaskSpec, workflowContext map[string]any) (Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, task models.TaskSpec, workflowContext map[string]any) (Result, error) {
	return f(ctx, task, workflowContext)
}

// ExecutorRegistry maps agent keys to their executors.
// It is process-wide and guarded against concurrent registration.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewExecutorRegistry creates an empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[string]Executor),
	}
}

// Register binds an executor to an agent key, replacing any previous binding.
func (r *ExecutorRegistry) Register(agent string, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[agent] = ex
}

// Get returns the executor for an agent key, or false if none is registered.
func (r *ExecutorRegistry) Get(agent string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[agent]
	return ex, ok
}

// Agents returns the registered agent keys.
func (r *ExecutorRegistry) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agents := make([]string, 0, len(r.executors))
	for a := range r.executors {
		agents = append(agents, a)
	}
	return agents
}
