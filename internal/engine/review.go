package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// DefaultReviewTimeout bounds how long an unresolved review is allowed to
// block a task. An expired review is treated as a rejection.
const DefaultReviewTimeout = 30 * time.Minute

// Decision is the outcome of a human review of a task result.
type Decision struct {
	// Approved indicates whether the result was accepted.
	Approved bool
	// Note provides reviewer context, required for rejections.
	Note string
}

// ReviewGate intercepts task results that carry a low confidence score or
// come from a sensitive task, and suspends the task until an external
// approve/reject decision arrives. The wait is a first-class state: the
// scheduler goroutine blocks in Wait while Resolve is called from any other
// call stack.
type ReviewGate struct {
	// threshold is the minimum confidence that passes without review.
	threshold float64
	// timeout bounds how long a review may stay unresolved.
	timeout time.Duration
	// bus publishes review lifecycle events.
	bus *EventBus

	mu      sync.Mutex
	pending map[string]chan Decision
}

// NewReviewGate creates a review gate with the given confidence threshold
// and resolution timeout. A non-positive timeout falls back to
// DefaultReviewTimeout.
func NewReviewGate(threshold float64, timeout time.Duration, bus *EventBus) *ReviewGate {
	if timeout <= 0 {
		timeout = DefaultReviewTimeout
	}
	return &ReviewGate{
		threshold: threshold,
		timeout:   timeout,
		bus:       bus,
		pending:   make(map[string]chan Decision),
	}
}

// Needed reports whether the result must be reviewed before the task can
// complete: either the task is flagged sensitive, or the executor reported a
// confidence below the threshold. Results without a confidence score pass.
func (g *ReviewGate) Needed(task models.TaskSpec, res Result) bool {
	if task.Sensitive {
		return true
	}
	return res.Confidence != nil && *res.Confidence < g.threshold
}

// Wait publishes a review_requested event and blocks until the review is
// resolved, the timeout expires, or the context is cancelled. A timeout
// returns ErrReviewTimeout.
func (g *ReviewGate) Wait(ctx context.Context, runID string, task models.TaskSpec, res Result) (Decision, error) {
	key := reviewKey(runID, task.ID)
	ch := make(chan Decision, 1)

	g.mu.Lock()
	g.pending[key] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, key)
		g.mu.Unlock()
	}()

	g.bus.Publish(Event{
		Name:       EventReviewRequested,
		RunID:      runID,
		TaskID:     task.ID,
		Message:    fmt.Sprintf("Review requested for task %s", task.ID),
		Result:     res.Output,
		Confidence: res.Confidence,
		Timestamp:  time.Now(),
	})

	t := time.NewTimer(g.timeout)
	defer t.Stop()

	select {
	case d := <-ch:
		return d, nil
	case <-t.C:
		return Decision{}, ErrReviewTimeout
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Resolve delivers a decision for a pending review. Returns a NotFoundError
// if no review is pending for the run/task pair.
func (g *ReviewGate) Resolve(runID, taskID string, d Decision) error {
	key := reviewKey(runID, taskID)

	g.mu.Lock()
	ch, ok := g.pending[key]
	g.mu.Unlock()

	if !ok {
		return &NotFoundError{Kind: "review", ID: key}
	}

	select {
	case ch <- d:
	default:
		// Decision already delivered.
	}
	return nil
}

// HasPending reports whether a review is awaiting resolution for the
// run/task pair.
func (g *ReviewGate) HasPending(runID, taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[reviewKey(runID, taskID)]
	return ok
}

func reviewKey(runID, taskID string) string {
	return runID + "/" + taskID
}
