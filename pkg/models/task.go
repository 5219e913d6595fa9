package models

import "time"

// TaskStatus represents the current state of a task run.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is being executed.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusReviewPending indicates the task result is awaiting human review.
	TaskStatusReviewPending TaskStatus = "review_pending"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was skipped because an optional
	// dependency did not complete.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusReviewPending,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state for a task.
// A failed task with retries remaining may still transition back to running.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// TaskSpec is the immutable definition of a single task within a workflow.
type TaskSpec struct {
	// ID is the task identifier, unique within its workflow.
	ID string `json:"id" yaml:"id"`
	// Name is the short human-readable description of the task.
	Name string `json:"name" yaml:"name"`
	// Agent is the executor key this task is dispatched to.
	Agent string `json:"agent" yaml:"agent"`
	// Command is the instruction passed to the executor.
	Command string `json:"command" yaml:"command"`
	// Dependencies lists task IDs that must reach a terminal state first.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// TimeoutSeconds bounds a single execution attempt. Zero means no limit.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	// MaxRetries is the number of automatic re-executions after a failure.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	// AllowParallel permits this task to run concurrently with others in
	// its dependency group. Serial tasks run one at a time after the
	// parallel subset of the group finishes.
	AllowParallel bool `json:"allow_parallel" yaml:"allow_parallel"`
	// Required marks the task as mandatory for workflow success. A failed
	// required task fails the workflow; a failed optional task does not.
	Required bool `json:"required" yaml:"required"`
	// Sensitive forces human review of the task result regardless of the
	// confidence score.
	Sensitive bool `json:"sensitive,omitempty" yaml:"sensitive,omitempty"`
}

// Timeout returns the per-attempt timeout as a duration, or zero if unset.
func (t TaskSpec) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// TaskRun is the mutable runtime record for one TaskSpec within a workflow run.
// It is owned and mutated exclusively by the engine; executors only read it.
type TaskRun struct {
	// TaskID is the ID of the TaskSpec this record tracks.
	TaskID string `json:"task_id"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result holds the executor output, if any.
	Result map[string]any `json:"result,omitempty"`
	// Error contains the failure or skip reason, if any.
	Error string `json:"error,omitempty"`
	// RetriesRemaining is the retry budget left for this task.
	RetriesRemaining int `json:"retries_remaining"`
	// Attempts counts executor invocations, including the first.
	Attempts int `json:"attempts"`
	// Confidence is the executor-reported confidence score, if provided.
	Confidence *float64 `json:"confidence,omitempty"`
	// ReviewNote is the reviewer's note attached on approval or rejection.
	ReviewNote string `json:"review_note,omitempty"`
	// StartedAt is when the first execution attempt began.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is when the task reached a terminal state.
	EndedAt *time.Time `json:"ended_at,omitempty"`
}
