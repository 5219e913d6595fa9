package engine

import (
	"context"
	"errors"
	"time"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// DefaultRetryDelay is the wait between execution attempts when no delay is
// configured.
const DefaultRetryDelay = 2 * time.Second

// RetryPolicy decides whether a failed task is re-queued and how long to
// wait before the next attempt.
type RetryPolicy struct {
	// Delay is the fixed wait before a retry.
	Delay time.Duration
}

// ShouldRetry reports whether a failed task should be re-executed.
// Retries are skipped entirely when the workflow disables AutoRetry, and a
// missing executor or unmet dependency is never retried.
func (p RetryPolicy) ShouldRetry(spec models.WorkflowSpec, retriesRemaining int, err error) bool {
	if !spec.AutoRetry {
		return false
	}
	if errors.Is(err, ErrExecutorNotFound) || errors.Is(err, ErrDependencyUnmet) {
		return false
	}
	return retriesRemaining > 0
}

// Wait blocks for the retry delay or until the context is cancelled.
func (p RetryPolicy) Wait(ctx context.Context) error {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
