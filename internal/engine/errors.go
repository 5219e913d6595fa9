package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutorNotFound indicates no executor is registered for a task's
	// agent key. This is fatal for the task and never retried.
	ErrExecutorNotFound = errors.New("executor not found")
	// ErrDependencyUnmet indicates a required task's dependency did not complete.
	ErrDependencyUnmet = errors.New("dependency unmet")
	// ErrTimeout indicates a task execution attempt exceeded its timeout.
	ErrTimeout = errors.New("task timed out")
	// ErrReviewTimeout indicates a pending review was not resolved in time.
	ErrReviewTimeout = errors.New("review timed out")
	// ErrReviewRejected indicates a reviewer rejected the task result.
	ErrReviewRejected = errors.New("review rejected")
	// ErrRunNotTerminal indicates an operation that requires a finished run
	// was attempted on a run that is still active.
	ErrRunNotTerminal = errors.New("run has not finished")
)

// DefinitionError indicates an invalid workflow definition: a duplicate task
// ID, a dependency on an unknown task, or a dependency cycle. It is raised
// synchronously at registration and never recovered automatically.
type DefinitionError struct {
	// Workflow is the name of the offending workflow.
	Workflow string
	// Err describes what is wrong with the definition.
	Err error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow %q: %v", e.Workflow, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// NotFoundError indicates a lookup by name or ID found nothing.
type NotFoundError struct {
	// Kind names what was looked up: "workflow", "run", or "review".
	Kind string
	// ID is the name or identifier that was not found.
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsNotFound returns true if err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
