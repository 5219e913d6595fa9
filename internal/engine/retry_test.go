package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

func TestShouldRetryWithBudget(t *testing.T) {
	p := RetryPolicy{Delay: time.Millisecond}
	spec := models.WorkflowSpec{AutoRetry: true}

	if !p.ShouldRetry(spec, 2, errors.New("transient")) {
		t.Error("expected retry with budget remaining")
	}
	if p.ShouldRetry(spec, 0, errors.New("transient")) {
		t.Error("expected no retry with exhausted budget")
	}
}

func TestShouldRetryAutoRetryDisabled(t *testing.T) {
	p := RetryPolicy{Delay: time.Millisecond}
	spec := models.WorkflowSpec{AutoRetry: false}

	if p.ShouldRetry(spec, 5, errors.New("transient")) {
		t.Error("expected no retry when AutoRetry is off, regardless of budget")
	}
}

func TestShouldRetryFatalErrors(t *testing.T) {
	p := RetryPolicy{Delay: time.Millisecond}
	spec := models.WorkflowSpec{AutoRetry: true}

	fatal := []error{
		ErrExecutorNotFound,
		ErrDependencyUnmet,
		fmt.Errorf("wrapped: %w", ErrExecutorNotFound),
		fmt.Errorf("wrapped: %w", ErrDependencyUnmet),
	}
	for _, err := range fatal {
		if p.ShouldRetry(spec, 5, err) {
			t.Errorf("expected no retry for fatal error: %v", err)
		}
	}
}

func TestRetryWaitRespectsDelay(t *testing.T) {
	p := RetryPolicy{Delay: 20 * time.Millisecond}

	start := time.Now()
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, expected at least 20ms", elapsed)
	}
}

func TestRetryWaitCancelled(t *testing.T) {
	p := RetryPolicy{Delay: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
