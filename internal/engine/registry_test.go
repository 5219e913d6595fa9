package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stagehand-dev/stagehand/internal/graph"
	"github.com/stagehand-dev/stagehand/pkg/models"
)

func TestWorkflowRegistryRegisterAndGet(t *testing.T) {
	r := NewWorkflowRegistry()

	spec := models.WorkflowSpec{
		Name:  "deploy",
		Tasks: []models.TaskSpec{{ID: "build", Agent: "shell"}},
	}
	if err := r.Register(spec); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := r.Get("deploy")
	if !ok {
		t.Fatal("expected registered workflow to be found")
	}
	if got.Name != "deploy" || len(got.Tasks) != 1 {
		t.Errorf("unexpected stored spec: %+v", got)
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}
}

func TestWorkflowRegistryRejectsEmptyName(t *testing.T) {
	r := NewWorkflowRegistry()
	err := r.Register(models.WorkflowSpec{Tasks: []models.TaskSpec{{ID: "a"}}})

	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got: %v", err)
	}
}

func TestWorkflowRegistryRejectsNoTasks(t *testing.T) {
	r := NewWorkflowRegistry()
	err := r.Register(models.WorkflowSpec{Name: "empty"})

	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got: %v", err)
	}
}

func TestWorkflowRegistryRejectsCycle(t *testing.T) {
	r := NewWorkflowRegistry()
	err := r.Register(models.WorkflowSpec{
		Name: "looped",
		Tasks: []models.TaskSpec{
			{ID: "a", Dependencies: []string{"b"}},
			{ID: "b", Dependencies: []string{"a"}},
		},
	})
	if err == nil {
		t.Fatal("expected error for cyclic workflow")
	}
	if !errors.Is(err, graph.ErrCycleDetected) {
		t.Errorf("expected wrapped ErrCycleDetected, got: %v", err)
	}
}

func TestWorkflowRegistryRejectsUnknownDependency(t *testing.T) {
	r := NewWorkflowRegistry()
	err := r.Register(models.WorkflowSpec{
		Name:  "dangling",
		Tasks: []models.TaskSpec{{ID: "a", Dependencies: []string{"ghost"}}},
	})

	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("expected DefinitionError, got: %v", err)
	}
}

func TestWorkflowRegistryRejectsDuplicateName(t *testing.T) {
	r := NewWorkflowRegistry()
	spec := models.WorkflowSpec{Name: "deploy", Tasks: []models.TaskSpec{{ID: "a"}}}

	if err := r.Register(spec); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register(spec); err == nil {
		t.Fatal("expected error re-registering the same name")
	}
}

func TestWorkflowRegistryNamesSorted(t *testing.T) {
	r := NewWorkflowRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		spec := models.WorkflowSpec{Name: name, Tasks: []models.TaskSpec{{ID: "a"}}}
		if err := r.Register(spec); err != nil {
			t.Fatalf("Register %s failed: %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestExecutorRegistry(t *testing.T) {
	r := NewExecutorRegistry()

	r.Register("shell", ExecutorFunc(func(ctx context.Context, task models.TaskSpec, wc map[string]any) (Result, error) {
		return Result{}, nil
	}))

	if _, ok := r.Get("shell"); !ok {
		t.Error("expected shell executor to be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing agent to not be found")
	}
	if agents := r.Agents(); len(agents) != 1 || agents[0] != "shell" {
		t.Errorf("expected agents [shell], got %v", agents)
	}
}
