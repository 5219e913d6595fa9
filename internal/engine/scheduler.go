package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stagehand-dev/stagehand/internal/graph"
	"github.com/stagehand-dev/stagehand/pkg/models"
)

// scheduler drives one workflow run: group-by-group dispatch with bounded
// parallelism, retry handling, and the review gate. Exactly one scheduler
// goroutine exists per run; all task mutation flows through the tracker.
type scheduler struct {
	spec        models.WorkflowSpec
	run         *models.WorkflowRun
	graph       *graph.DependencyGraph
	groups      [][]string
	tracker     *StatusTracker
	executors   *ExecutorRegistry
	bus         *EventBus
	retry       RetryPolicy
	review      *ReviewGate
	maxParallel int
	// cancelled is set by Engine.CancelWorkflow. Checked between groups:
	// cancellation stops future dispatch but never pre-empts in-flight
	// executors.
	cancelled *atomic.Bool
}

// Run executes all dependency groups in order and returns the terminal
// workflow status plus error details. Tasks in group k start only after
// every task in groups below k reached a terminal state.
func (s *scheduler) Run(ctx context.Context) (models.WorkflowStatus, string) {
	if d := s.spec.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	for k, group := range s.groups {
		if s.cancelled.Load() {
			debugLog("[scheduler] run %s cancelled before group %d", s.run.ID, k)
			return models.WorkflowStatusCancelled, ""
		}
		if err := ctx.Err(); err != nil {
			return s.interrupted(err)
		}

		debugLog("[scheduler] run %s dispatching group %d: %v", s.run.ID, k, group)
		s.runGroup(ctx, group)

		// A terminally failed required task aborts all subsequent groups.
		if taskID, failed := s.tracker.HasRequiredFailure(s.spec, s.run); failed {
			tr := s.run.Tasks[taskID]
			details := fmt.Sprintf("required task %s failed", taskID)
			if tr != nil && tr.Error != "" {
				details = fmt.Sprintf("required task %s failed: %s", taskID, tr.Error)
			}
			debugLog("[scheduler] run %s halting after group %d: %s", s.run.ID, k, details)
			return models.WorkflowStatusFailed, details
		}
	}

	if s.cancelled.Load() {
		return models.WorkflowStatusCancelled, ""
	}
	if err := ctx.Err(); err != nil {
		return s.interrupted(err)
	}
	return models.WorkflowStatusCompleted, ""
}

// interrupted maps a context error on the run context to a terminal status.
func (s *scheduler) interrupted(err error) (models.WorkflowStatus, string) {
	if s.cancelled.Load() || errors.Is(err, context.Canceled) {
		return models.WorkflowStatusCancelled, ""
	}
	return models.WorkflowStatusFailed, "workflow timed out"
}

// runGroup executes one dependency group: the parallel subset first, bounded
// by min(maxParallel, subset size), then the serial subset one at a time in
// definition order.
func (s *scheduler) runGroup(ctx context.Context, group []string) {
	var parallel, serial []string
	for _, id := range group {
		task, ok := s.spec.Task(id)
		if ok && task.AllowParallel {
			parallel = append(parallel, id)
		} else {
			serial = append(serial, id)
		}
	}

	if len(parallel) > 0 {
		limit := s.maxParallel
		if limit <= 0 || limit > len(parallel) {
			limit = len(parallel)
		}
		sem := make(chan struct{}, limit)
		var wg sync.WaitGroup
		for _, id := range parallel {
			wg.Add(1)
			go func(taskID string) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				s.executeTask(ctx, taskID)
			}(id)
		}
		wg.Wait()
	}

	for _, id := range serial {
		s.executeTask(ctx, id)
	}
}

// executeTask runs a single task to a terminal state: dependency check,
// executor lookup, the attempt/retry loop, and the review gate.
func (s *scheduler) executeTask(ctx context.Context, taskID string) {
	task, ok := s.spec.Task(taskID)
	if !ok {
		debugLog("[scheduler] run %s: unknown task %s in group", s.run.ID, taskID)
		return
	}
	tr := s.run.Tasks[taskID]

	// A dependency that was skipped or failed leaves this task unmet:
	// optional tasks are skipped, required tasks fail without execution.
	for _, depID := range s.graph.Dependencies(taskID) {
		if s.tracker.TaskStatus(s.run, depID) == models.TaskStatusCompleted {
			continue
		}
		reason := fmt.Sprintf("dependency %s did not complete", depID)
		if task.Required {
			s.tracker.FailTask(s.run, tr, fmt.Sprintf("%v: %s", ErrDependencyUnmet, reason))
			s.publishTask(EventTaskFailed, task, reason)
		} else {
			s.tracker.SkipTask(s.run, tr, reason)
			s.publishTask(EventTaskSkipped, task, reason)
		}
		return
	}

	executor, ok := s.executors.Get(task.Agent)
	if !ok {
		// Fatal for the task, never retried.
		msg := fmt.Sprintf("%v: agent %q", ErrExecutorNotFound, task.Agent)
		s.tracker.FailTask(s.run, tr, msg)
		s.publishTask(EventTaskFailed, task, msg)
		return
	}

	for {
		s.tracker.StartAttempt(s.run, tr)
		s.publishTask(EventTaskStarted, task, fmt.Sprintf("Executing %s via %s", task.ID, task.Agent))

		res, err := s.invoke(ctx, executor, task)
		if err == nil {
			if s.review.Needed(task, res) {
				res, err = s.awaitReview(ctx, task, tr, res)
			}
			if err == nil {
				s.tracker.CompleteTask(s.run, tr, res, "")
				s.publishTask(EventTaskCompleted, task, "")
				return
			}
		}

		if ctx.Err() != nil {
			// Run context gone; no point in retrying.
			s.tracker.FailTask(s.run, tr, err.Error())
			s.publishTask(EventTaskFailed, task, err.Error())
			return
		}

		if s.retry.ShouldRetry(s.spec, s.tracker.RetriesLeft(s.run, tr), err) {
			s.tracker.RecordFailure(s.run, tr, err.Error())
			debugLog("[scheduler] run %s task %s failed (attempt %d), retrying: %v", s.run.ID, task.ID, tr.Attempts, err)
			if werr := s.retry.Wait(ctx); werr != nil {
				s.tracker.FailTask(s.run, tr, err.Error())
				s.publishTask(EventTaskFailed, task, err.Error())
				return
			}
			continue
		}

		s.tracker.FailTask(s.run, tr, err.Error())
		s.publishTask(EventTaskFailed, task, err.Error())
		return
	}
}

// awaitReview parks the task in review_pending and blocks until the review
// resolves or expires. Approval returns the result unchanged; rejection and
// expiry return an error that flows through the normal retry path.
func (s *scheduler) awaitReview(ctx context.Context, task models.TaskSpec, tr *models.TaskRun, res Result) (Result, error) {
	s.tracker.MarkReviewPending(s.run, tr, res.Confidence)

	decision, err := s.review.Wait(ctx, s.run.ID, task, res)
	if err != nil {
		if errors.Is(err, ErrReviewTimeout) {
			debugLog("[scheduler] run %s task %s review expired", s.run.ID, task.ID)
		}
		return Result{}, err
	}

	s.tracker.SetReviewNote(s.run, tr, decision.Note)
	if decision.Approved {
		s.bus.Publish(Event{
			Name:      EventReviewApproved,
			RunID:     s.run.ID,
			Workflow:  s.run.Workflow,
			TaskID:    task.ID,
			Note:      decision.Note,
			Timestamp: time.Now(),
		})
		return res, nil
	}

	s.bus.Publish(Event{
		Name:      EventReviewRejected,
		RunID:     s.run.ID,
		Workflow:  s.run.Workflow,
		TaskID:    task.ID,
		Note:      decision.Note,
		Timestamp: time.Now(),
	})
	return Result{}, fmt.Errorf("%w: %s", ErrReviewRejected, decision.Note)
}

// invoke runs one execution attempt under the task's timeout. The executor
// runs on its own goroutine so a timeout or cancellation never blocks the
// scheduler; a late result from an abandoned attempt is discarded. Executor
// panics are captured as task errors, never propagated.
func (s *scheduler) invoke(ctx context.Context, executor Executor, task models.TaskSpec) (Result, error) {
	attemptCtx := ctx
	if d := task.Timeout(); d > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	type outcome struct {
		res Result
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("executor panic: %v", r)}
			}
		}()
		res, err := executor.Execute(attemptCtx, task, s.run.Context)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{}, fmt.Errorf("%w after %s", ErrTimeout, task.Timeout())
		}
		return Result{}, attemptCtx.Err()
	}
}

// publishTask emits a task lifecycle event on the bus.
func (s *scheduler) publishTask(name EventName, task models.TaskSpec, message string) {
	s.bus.Publish(Event{
		Name:      name,
		RunID:     s.run.ID,
		Workflow:  s.run.Workflow,
		TaskID:    task.ID,
		Message:   message,
		Timestamp: time.Now(),
	})
}
