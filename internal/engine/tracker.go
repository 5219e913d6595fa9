package engine

import (
	"sync"
	"time"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// TaskSnapshot is a point-in-time view of one task run.
type TaskSnapshot struct {
	Status     models.TaskStatus `json:"status"`
	Confidence *float64          `json:"confidence,omitempty"`
	Error      string            `json:"error,omitempty"`
	Attempts   int               `json:"attempts"`
	ReviewNote string            `json:"review_note,omitempty"`
}

// Snapshot is a point-in-time view of one workflow run, safe to hand to
// callers while the run continues to mutate.
type Snapshot struct {
	RunID        string                  `json:"run_id"`
	Workflow     string                  `json:"workflow"`
	Status       models.WorkflowStatus   `json:"status"`
	ErrorDetails string                  `json:"error_details,omitempty"`
	Tasks        map[string]TaskSnapshot `json:"tasks"`
	Metrics      models.RunMetrics       `json:"metrics"`
	StartedAt    time.Time               `json:"started_at"`
	EndedAt      *time.Time              `json:"ended_at,omitempty"`
}

// StatusTracker is the arena of live workflow runs. All mutation of run
// state flows through its lock, so snapshots observed by callers are always
// consistent. Runs stay in the arena until explicitly discarded.
type StatusTracker struct {
	mu   sync.RWMutex
	runs map[string]*models.WorkflowRun
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{
		runs: make(map[string]*models.WorkflowRun),
	}
}

// Add registers a run in the arena.
func (t *StatusTracker) Add(run *models.WorkflowRun) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[run.ID] = run
}

// Remove deletes a run from the arena and returns it.
func (t *StatusTracker) Remove(runID string) (*models.WorkflowRun, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[runID]
	delete(t.runs, runID)
	return run, ok
}

// Get returns the live run for an ID. The returned pointer must only be
// read or mutated through tracker methods.
func (t *StatusTracker) Get(runID string) (*models.WorkflowRun, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[runID]
	return run, ok
}

// Snapshot returns a consistent copy of the run's state, or a NotFoundError
// if the run is unknown.
func (t *StatusTracker) Snapshot(runID string) (Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[runID]
	if !ok {
		return Snapshot{}, &NotFoundError{Kind: "run", ID: runID}
	}

	snap := Snapshot{
		RunID:        run.ID,
		Workflow:     run.Workflow,
		Status:       run.Status,
		ErrorDetails: run.ErrorDetails,
		Tasks:        make(map[string]TaskSnapshot, len(run.Tasks)),
		Metrics:      run.Metrics,
		StartedAt:    run.StartedAt,
	}
	if run.EndedAt != nil {
		ended := *run.EndedAt
		snap.EndedAt = &ended
	}
	for id, tr := range run.Tasks {
		ts := TaskSnapshot{
			Status:     tr.Status,
			Error:      tr.Error,
			Attempts:   tr.Attempts,
			ReviewNote: tr.ReviewNote,
		}
		if tr.Confidence != nil {
			c := *tr.Confidence
			ts.Confidence = &c
		}
		snap.Tasks[id] = ts
	}
	return snap, nil
}

// SetWorkflowStatus transitions the run to the given status. Terminal
// statuses also stamp EndedAt. Transitions out of a terminal state are
// ignored; no terminal state is re-entered.
func (t *StatusTracker) SetWorkflowStatus(run *models.WorkflowRun, status models.WorkflowStatus, errDetails string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if run.Status.Terminal() {
		return
	}
	run.Status = status
	if errDetails != "" {
		run.ErrorDetails = errDetails
	}
	if status == models.WorkflowStatusRunning && run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if status.Terminal() {
		now := time.Now()
		run.EndedAt = &now
	}
}

// StartAttempt transitions a task to running for a new execution attempt.
func (t *StatusTracker) StartAttempt(run *models.WorkflowRun, tr *models.TaskRun) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.Status = models.TaskStatusRunning
	tr.Attempts++
	if tr.StartedAt == nil {
		now := time.Now()
		tr.StartedAt = &now
	}
}

// MarkReviewPending parks a task awaiting human review.
func (t *StatusTracker) MarkReviewPending(run *models.WorkflowRun, tr *models.TaskRun, confidence *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.Status = models.TaskStatusReviewPending
	tr.Confidence = confidence
}

// RecordFailure records a failed attempt without making the task terminal.
// Used when the retry manager will re-queue the task.
func (t *StatusTracker) RecordFailure(run *models.WorkflowRun, tr *models.TaskRun, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.Status = models.TaskStatusFailed
	tr.Error = errMsg
	if tr.RetriesRemaining > 0 {
		tr.RetriesRemaining--
	}
}

// CompleteTask marks a task terminally completed and updates metrics.
func (t *StatusTracker) CompleteTask(run *models.WorkflowRun, tr *models.TaskRun, res Result, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.Status = models.TaskStatusCompleted
	tr.Result = res.Output
	tr.Confidence = res.Confidence
	tr.Error = ""
	if note != "" {
		tr.ReviewNote = note
	}
	now := time.Now()
	tr.EndedAt = &now
	run.Metrics.Completed++
}

// FailTask marks a task terminally failed and updates metrics.
func (t *StatusTracker) FailTask(run *models.WorkflowRun, tr *models.TaskRun, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.Status = models.TaskStatusFailed
	tr.Error = errMsg
	now := time.Now()
	tr.EndedAt = &now
	run.Metrics.Failed++
}

// SkipTask marks a task skipped and updates metrics.
func (t *StatusTracker) SkipTask(run *models.WorkflowRun, tr *models.TaskRun, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr.Status = models.TaskStatusSkipped
	tr.Error = reason
	now := time.Now()
	tr.EndedAt = &now
	run.Metrics.Skipped++
}

// RetriesLeft returns the remaining retry budget for a task.
func (t *StatusTracker) RetriesLeft(run *models.WorkflowRun, tr *models.TaskRun) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return tr.RetriesRemaining
}

// SetReviewNote attaches a reviewer note to a task run.
func (t *StatusTracker) SetReviewNote(run *models.WorkflowRun, tr *models.TaskRun, note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr.ReviewNote = note
}

// TaskStatus returns the current status of one task in a run.
func (t *StatusTracker) TaskStatus(run *models.WorkflowRun, taskID string) models.TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tr, ok := run.Tasks[taskID]
	if !ok {
		return ""
	}
	return tr.Status
}

// HasRequiredFailure reports whether any required task of the spec has
// terminally failed in this run.
func (t *StatusTracker) HasRequiredFailure(spec models.WorkflowSpec, run *models.WorkflowRun) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, task := range spec.Tasks {
		if !task.Required {
			continue
		}
		tr := run.Tasks[task.ID]
		if tr != nil && tr.Status == models.TaskStatusFailed && tr.EndedAt != nil {
			return task.ID, true
		}
	}
	return "", false
}

// RunIDs returns the IDs of all live runs.
func (t *StatusTracker) RunIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.runs))
	for id := range t.runs {
		ids = append(ids, id)
	}
	return ids
}
