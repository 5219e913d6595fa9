package models

import (
	"fmt"
	"time"
)

// WorkflowStatus represents the current state of a workflow run.
type WorkflowStatus string

const (
	// WorkflowStatusPending indicates the run was created but not started.
	WorkflowStatusPending WorkflowStatus = "pending"
	// WorkflowStatusRunning indicates the run is executing.
	WorkflowStatusRunning WorkflowStatus = "running"
	// WorkflowStatusCompleted indicates every required task completed or skipped.
	WorkflowStatusCompleted WorkflowStatus = "completed"
	// WorkflowStatusFailed indicates a required task terminally failed.
	WorkflowStatusFailed WorkflowStatus = "failed"
	// WorkflowStatusCancelled indicates the run was cancelled by the caller.
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusRunning, WorkflowStatusCompleted,
		WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state for a workflow run.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowSpec is the immutable definition of a workflow: an ordered list of
// tasks plus run-wide policy. Specs are registered once and never mutated.
type WorkflowSpec struct {
	// Name is the workflow identifier, unique within the registry.
	Name string `json:"name" yaml:"name"`
	// Description explains what the workflow does.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Tasks are the task definitions in declaration order.
	Tasks []TaskSpec `json:"tasks" yaml:"tasks"`
	// MaxParallel bounds concurrent task execution within a dependency group.
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`
	// TimeoutSeconds bounds the whole run. Zero means no limit.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	// AutoRetry enables automatic re-execution of failed tasks up to each
	// task's MaxRetries. When false, retry budgets are ignored.
	AutoRetry bool `json:"auto_retry" yaml:"auto_retry"`
	// NotifyOnCompletion enables the workflow_completed event for this workflow.
	NotifyOnCompletion bool `json:"notify_on_completion" yaml:"notify_on_completion"`
	// NotifyOnFailure enables the workflow_failed event for this workflow.
	NotifyOnFailure bool `json:"notify_on_failure" yaml:"notify_on_failure"`
}

// Task returns the TaskSpec with the given ID, or false if not present.
func (w WorkflowSpec) Task(id string) (TaskSpec, bool) {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskSpec{}, false
}

// Timeout returns the run timeout as a duration, or zero if unset.
func (w WorkflowSpec) Timeout() time.Duration {
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// RunMetrics aggregates per-task terminal states for one workflow run.
type RunMetrics struct {
	// Total is the number of tasks in the workflow.
	Total int `json:"total"`
	// Completed counts tasks that finished successfully.
	Completed int `json:"completed"`
	// Failed counts tasks that terminally failed.
	Failed int `json:"failed"`
	// Skipped counts tasks skipped due to unmet optional dependencies.
	Skipped int `json:"skipped"`
}

// WorkflowRun is the mutable runtime record for one invocation of a workflow.
// The engine owns it for the duration of the run; callers observe it through
// status snapshots.
type WorkflowRun struct {
	// ID is the generated run identifier, <workflow name>_<unix timestamp>.
	ID string `json:"id"`
	// Workflow is the name of the registered WorkflowSpec this run executes.
	Workflow string `json:"workflow"`
	// Status is the current state of the run.
	Status WorkflowStatus `json:"status"`
	// Context is the caller-supplied input, read-only to tasks.
	Context map[string]any `json:"context,omitempty"`
	// Tasks maps task ID to its runtime record.
	Tasks map[string]*TaskRun `json:"tasks"`
	// Metrics counts tasks per terminal state.
	Metrics RunMetrics `json:"metrics"`
	// ErrorDetails describes why the run failed, if it did.
	ErrorDetails string `json:"error_details,omitempty"`
	// StartedAt is when the run began executing.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run reached a terminal state.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}

// NewWorkflowRun creates a run for the given spec with every task pending and
// the full retry budget. The context map is used as-is and must not be
// mutated by the caller afterwards.
func NewWorkflowRun(spec WorkflowSpec, context map[string]any) *WorkflowRun {
	run := &WorkflowRun{
		ID:       fmt.Sprintf("%s_%d", spec.Name, time.Now().UnixNano()),
		Workflow: spec.Name,
		Status:   WorkflowStatusPending,
		Context:  context,
		Tasks:    make(map[string]*TaskRun, len(spec.Tasks)),
	}
	for _, t := range spec.Tasks {
		run.Tasks[t.ID] = &TaskRun{
			TaskID:           t.ID,
			Status:           TaskStatusPending,
			RetriesRemaining: t.MaxRetries,
		}
	}
	run.Metrics.Total = len(spec.Tasks)
	return run
}
