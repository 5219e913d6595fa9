package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

func confidence(v float64) *float64 { return &v }

func TestReviewNeeded(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	g := NewReviewGate(0.7, time.Minute, bus)

	tests := []struct {
		name string
		task models.TaskSpec
		res  Result
		want bool
	}{
		{"below threshold", models.TaskSpec{}, Result{Confidence: confidence(0.4)}, true},
		{"at threshold", models.TaskSpec{}, Result{Confidence: confidence(0.7)}, false},
		{"above threshold", models.TaskSpec{}, Result{Confidence: confidence(0.95)}, false},
		{"no confidence reported", models.TaskSpec{}, Result{}, false},
		{"sensitive task high confidence", models.TaskSpec{Sensitive: true}, Result{Confidence: confidence(0.99)}, true},
		{"sensitive task no confidence", models.TaskSpec{Sensitive: true}, Result{}, true},
	}
	for _, tt := range tests {
		if got := g.Needed(tt.task, tt.res); got != tt.want {
			t.Errorf("%s: Needed = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestReviewApproval(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	g := NewReviewGate(0.7, time.Minute, bus)

	requested := make(chan Event, 1)
	bus.Subscribe(EventReviewRequested, func(ev Event) {
		requested <- ev
	})

	task := models.TaskSpec{ID: "deploy"}
	type outcome struct {
		d   Decision
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		d, err := g.Wait(context.Background(), "run1", task, Result{Confidence: confidence(0.4)})
		done <- outcome{d, err}
	}()

	// The request event confirms the review is parked before resolving.
	select {
	case ev := <-requested:
		if ev.TaskID != "deploy" {
			t.Errorf("expected review request for deploy, got %s", ev.TaskID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for review_requested event")
	}

	if !g.HasPending("run1", "deploy") {
		t.Error("expected pending review for run1/deploy")
	}

	if err := g.Resolve("run1", "deploy", Decision{Approved: true, Note: "looks right"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	select {
	case o := <-done:
		if o.err != nil {
			t.Fatalf("Wait failed: %v", o.err)
		}
		if !o.d.Approved || o.d.Note != "looks right" {
			t.Errorf("unexpected decision: %+v", o.d)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Wait to return")
	}

	if g.HasPending("run1", "deploy") {
		t.Error("expected pending review to be cleared after resolution")
	}
}

func TestReviewRejection(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	g := NewReviewGate(0.7, time.Minute, bus)

	task := models.TaskSpec{ID: "deploy"}
	done := make(chan Decision, 1)
	go func() {
		d, err := g.Wait(context.Background(), "run1", task, Result{Confidence: confidence(0.2)})
		if err != nil {
			t.Errorf("Wait failed: %v", err)
		}
		done <- d
	}()

	waitForPending(t, g, "run1", "deploy")
	if err := g.Resolve("run1", "deploy", Decision{Approved: false, Note: "wrong output"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	select {
	case d := <-done:
		if d.Approved {
			t.Error("expected rejection")
		}
		if d.Note != "wrong output" {
			t.Errorf("expected rejection note, got %q", d.Note)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decision")
	}
}

func TestReviewTimeout(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	g := NewReviewGate(0.7, 20*time.Millisecond, bus)

	_, err := g.Wait(context.Background(), "run1", models.TaskSpec{ID: "a"}, Result{})
	if !errors.Is(err, ErrReviewTimeout) {
		t.Fatalf("expected ErrReviewTimeout, got: %v", err)
	}
}

func TestReviewContextCancelled(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	g := NewReviewGate(0.7, time.Minute, bus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Wait(ctx, "run1", models.TaskSpec{ID: "a"}, Result{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestResolveUnknownReview(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	g := NewReviewGate(0.7, time.Minute, bus)

	err := g.Resolve("run1", "ghost", Decision{Approved: true})
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got: %v", err)
	}
}

// waitForPending blocks until the gate registers the review or the test
// deadline approaches.
func waitForPending(t *testing.T, g *ReviewGate, runID, taskID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !g.HasPending(runID, taskID) {
		if time.Now().After(deadline) {
			t.Fatalf("review %s/%s never became pending", runID, taskID)
		}
		time.Sleep(time.Millisecond)
	}
}
