package engine

import (
	"time"
)

// EventName identifies the kind of engine event.
type EventName string

const (
	// EventWorkflowStarted indicates a workflow run began executing.
	EventWorkflowStarted EventName = "workflow_started"
	// EventWorkflowCompleted indicates every required task finished without failure.
	EventWorkflowCompleted EventName = "workflow_completed"
	// EventWorkflowFailed indicates a required task terminally failed.
	EventWorkflowFailed EventName = "workflow_failed"
	// EventWorkflowCancelled indicates the run was cancelled by the caller.
	EventWorkflowCancelled EventName = "workflow_cancelled"
	// EventTaskStarted indicates a task execution attempt began.
	EventTaskStarted EventName = "task_started"
	// EventTaskCompleted indicates a task finished successfully.
	EventTaskCompleted EventName = "task_completed"
	// EventTaskFailed indicates a task terminally failed.
	EventTaskFailed EventName = "task_failed"
	// EventTaskSkipped indicates a task was skipped over an unmet optional dependency.
	EventTaskSkipped EventName = "task_skipped"
	// EventReviewRequested indicates a task result is awaiting human review.
	EventReviewRequested EventName = "review_requested"
	// EventReviewApproved indicates a reviewer approved a pending task result.
	EventReviewApproved EventName = "review_approved"
	// EventReviewRejected indicates a reviewer rejected a pending task result.
	EventReviewRejected EventName = "review_rejected"
)

// Event is a single engine lifecycle notification published on the bus.
type Event struct {
	// Name is the kind of event.
	Name EventName
	// RunID is the workflow run this event belongs to.
	RunID string
	// Workflow is the name of the workflow definition.
	Workflow string
	// TaskID is the related task, if applicable.
	TaskID string
	// Message provides additional context about the event.
	Message string
	// Result holds the task output for review and completion events.
	Result map[string]any
	// Confidence is the executor-reported confidence, if provided.
	Confidence *float64
	// Note carries the reviewer note for review resolution events.
	Note string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
