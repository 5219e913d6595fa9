package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stagehand-dev/stagehand/internal/graph"
	"github.com/stagehand-dev/stagehand/internal/state"
	"github.com/stagehand-dev/stagehand/pkg/models"
)

// Engine owns the workflow and executor registries, the live-run arena, and
// the event bus, and drives one scheduler goroutine per workflow run. It is
// the single entry point for run control: start, status, cancel, review
// resolution, and discard.
type Engine struct {
	workflows *WorkflowRegistry
	executors *ExecutorRegistry
	bus       *EventBus
	tracker   *StatusTracker
	review    *ReviewGate
	retry     RetryPolicy
	store     state.RunStore
	logger    *DebugLogger

	// maxParallel is the fallback in-group concurrency bound.
	maxParallel int

	mu   sync.Mutex
	runs map[string]*runHandle
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// runHandle tracks engine-side control state for one live run.
type runHandle struct {
	// cancelled stops dispatch of not-yet-started groups.
	cancelled atomic.Bool
	// done closes when the run's scheduler goroutine exits.
	done chan struct{}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	o := engineOptions{
		reviewThreshold: DefaultReviewThreshold,
		reviewTimeout:   DefaultReviewTimeout,
		retryDelay:      DefaultRetryDelay,
		maxParallel:     DefaultMaxParallel,
		logger:          NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := NewEventBus()

	e := &Engine{
		workflows:   NewWorkflowRegistry(),
		executors:   NewExecutorRegistry(),
		bus:         bus,
		tracker:     NewStatusTracker(),
		review:      NewReviewGate(o.reviewThreshold, o.reviewTimeout, bus),
		retry:       RetryPolicy{Delay: o.retryDelay},
		store:       o.store,
		logger:      o.logger,
		maxParallel: o.maxParallel,
		runs:        make(map[string]*runHandle),
		ctx:         ctx,
		cancel:      cancel,
	}
	setPackageLogger(o.logger)
	return e
}

// RegisterWorkflow validates and registers a workflow definition.
func (e *Engine) RegisterWorkflow(spec models.WorkflowSpec) error {
	if err := e.workflows.Register(spec); err != nil {
		return err
	}
	e.logger.Log("[engine] registered workflow %s (%d tasks)", spec.Name, len(spec.Tasks))
	return nil
}

// RegisterExecutor binds an executor to an agent key.
func (e *Engine) RegisterExecutor(agent string, ex Executor) {
	e.executors.Register(agent, ex)
	e.logger.Log("[engine] registered executor for agent %s", agent)
}

// Workflows returns the workflow registry.
func (e *Engine) Workflows() *WorkflowRegistry { return e.workflows }

// Bus returns the event bus for subscribing to lifecycle events.
func (e *Engine) Bus() *EventBus { return e.bus }

// StartWorkflow creates a run for a registered workflow and starts executing
// it on its own scheduler goroutine. Returns the run ID, a NotFoundError if
// the workflow name is unregistered, or a DefinitionError if the stored
// definition no longer partitions (which indicates registry misuse).
func (e *Engine) StartWorkflow(name string, workflowContext map[string]any) (string, error) {
	spec, ok := e.workflows.Get(name)
	if !ok {
		return "", &NotFoundError{Kind: "workflow", ID: name}
	}

	g, err := graph.Build(spec.Tasks)
	if err != nil {
		return "", &DefinitionError{Workflow: name, Err: err}
	}
	groups, err := g.Groups()
	if err != nil {
		return "", &DefinitionError{Workflow: name, Err: err}
	}

	run := models.NewWorkflowRun(spec, workflowContext)
	e.tracker.Add(run)

	handle := &runHandle{done: make(chan struct{})}
	e.mu.Lock()
	e.runs[run.ID] = handle
	e.mu.Unlock()

	maxParallel := spec.MaxParallel
	if maxParallel <= 0 {
		maxParallel = e.maxParallel
	}

	e.wg.Add(1)
	go e.runWorkflow(handle, spec, run, g, groups, maxParallel)

	e.logger.Log("[engine] started run %s for workflow %s (%d groups)", run.ID, name, len(groups))
	return run.ID, nil
}

// runWorkflow drives one run to a terminal state and archives it.
func (e *Engine) runWorkflow(h *runHandle, spec models.WorkflowSpec, run *models.WorkflowRun, g *graph.DependencyGraph, groups [][]string, maxParallel int) {
	defer e.wg.Done()
	defer close(h.done)

	e.tracker.SetWorkflowStatus(run, models.WorkflowStatusRunning, "")
	e.bus.Publish(Event{
		Name:      EventWorkflowStarted,
		RunID:     run.ID,
		Workflow:  run.Workflow,
		Timestamp: time.Now(),
	})

	sched := &scheduler{
		spec:        spec,
		run:         run,
		graph:       g,
		groups:      groups,
		tracker:     e.tracker,
		executors:   e.executors,
		bus:         e.bus,
		retry:       e.retry,
		review:      e.review,
		maxParallel: maxParallel,
		cancelled:   &h.cancelled,
	}

	status, details := sched.Run(e.ctx)
	e.tracker.SetWorkflowStatus(run, status, details)
	e.logger.Log("[engine] run %s finished: %s %s", run.ID, status, details)

	switch status {
	case models.WorkflowStatusCompleted:
		if spec.NotifyOnCompletion {
			e.bus.Publish(Event{
				Name:      EventWorkflowCompleted,
				RunID:     run.ID,
				Workflow:  run.Workflow,
				Timestamp: time.Now(),
			})
		}
	case models.WorkflowStatusFailed:
		if spec.NotifyOnFailure {
			e.bus.Publish(Event{
				Name:      EventWorkflowFailed,
				RunID:     run.ID,
				Workflow:  run.Workflow,
				Message:   details,
				Timestamp: time.Now(),
			})
		}
	case models.WorkflowStatusCancelled:
		e.bus.Publish(Event{
			Name:      EventWorkflowCancelled,
			RunID:     run.ID,
			Workflow:  run.Workflow,
			Timestamp: time.Now(),
		})
	}

	e.archiveRun(run.ID)
}

// GetStatus returns a snapshot of a live run, or a NotFoundError if the run
// ID is unknown.
func (e *Engine) GetStatus(runID string) (Snapshot, error) {
	return e.tracker.Snapshot(runID)
}

// CancelWorkflow marks a run cancelled. Not-yet-started groups will never
// dispatch; tasks already running are not interrupted. Returns a
// NotFoundError for unknown run IDs.
func (e *Engine) CancelWorkflow(runID string) error {
	e.mu.Lock()
	handle, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return &NotFoundError{Kind: "run", ID: runID}
	}

	handle.cancelled.Store(true)
	e.logger.Log("[engine] run %s cancel requested", runID)
	return nil
}

// ResolveReview delivers a human decision for a task parked in
// review_pending, re-entering the scheduler loop for that task. Returns a
// NotFoundError if no review is pending for the run/task pair.
func (e *Engine) ResolveReview(runID, taskID string, approved bool, note string) error {
	return e.review.Resolve(runID, taskID, Decision{Approved: approved, Note: note})
}

// Wait blocks until the run's scheduler goroutine exits or the context is
// cancelled. Returns a NotFoundError for unknown run IDs.
func (e *Engine) Wait(ctx context.Context, runID string) error {
	e.mu.Lock()
	handle, ok := e.runs[runID]
	e.mu.Unlock()
	if !ok {
		return &NotFoundError{Kind: "run", ID: runID}
	}

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DiscardRun removes a finished run from the live arena, archiving it first
// when a store is configured. Active runs cannot be discarded.
func (e *Engine) DiscardRun(runID string) error {
	snap, err := e.tracker.Snapshot(runID)
	if err != nil {
		return err
	}
	if !snap.Status.Terminal() {
		return ErrRunNotTerminal
	}

	e.archiveRun(runID)
	e.tracker.Remove(runID)

	e.mu.Lock()
	delete(e.runs, runID)
	e.mu.Unlock()
	return nil
}

// archiveRun persists a snapshot of the run to the store, best effort.
func (e *Engine) archiveRun(runID string) {
	if e.store == nil {
		return
	}
	snap, err := e.tracker.Snapshot(runID)
	if err != nil {
		return
	}

	rec := &state.RunRecord{
		ID:           snap.RunID,
		Workflow:     snap.Workflow,
		Status:       string(snap.Status),
		ErrorDetails: snap.ErrorDetails,
		Total:        snap.Metrics.Total,
		Completed:    snap.Metrics.Completed,
		Failed:       snap.Metrics.Failed,
		Skipped:      snap.Metrics.Skipped,
		StartedAt:    snap.StartedAt,
		EndedAt:      snap.EndedAt,
	}
	for taskID, ts := range snap.Tasks {
		rec.Tasks = append(rec.Tasks, state.TaskRecord{
			TaskID:     taskID,
			Status:     string(ts.Status),
			Error:      ts.Error,
			Attempts:   ts.Attempts,
			Confidence: ts.Confidence,
			ReviewNote: ts.ReviewNote,
		})
	}

	if err := e.store.SaveRun(rec); err != nil {
		log.Printf("[engine] warning: failed to archive run %s: %v", runID, err)
	}
}

// DroppedEventCount returns the number of events the bus dropped.
func (e *Engine) DroppedEventCount() uint64 {
	return e.bus.DroppedCount()
}

// Close stops the engine: in-flight runs are cancelled via their context,
// scheduler goroutines are awaited, and the bus is closed. The run store,
// if any, remains open and owned by the caller.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	e.bus.Close()
	return nil
}
