package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stagehand-dev/stagehand/internal/graph"
	"github.com/stagehand-dev/stagehand/pkg/models"
)

// WorkflowRegistry holds registered workflow definitions keyed by name.
// Definitions are validated at registration and immutable afterwards.
type WorkflowRegistry struct {
	mu    sync.RWMutex
	specs map[string]models.WorkflowSpec
}

// NewWorkflowRegistry creates an empty workflow registry.
func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{
		specs: make(map[string]models.WorkflowSpec),
	}
}

// Register validates and stores a workflow definition. It returns a
// DefinitionError if the name is empty or already taken, a task ID is
// duplicated, a dependency references an unknown task, or the dependency
// graph contains a cycle.
func (r *WorkflowRegistry) Register(spec models.WorkflowSpec) error {
	if spec.Name == "" {
		return &DefinitionError{Workflow: spec.Name, Err: fmt.Errorf("workflow name is required")}
	}
	if len(spec.Tasks) == 0 {
		return &DefinitionError{Workflow: spec.Name, Err: fmt.Errorf("workflow has no tasks")}
	}

	// The same traversal validates the graph here and partitions it at
	// run start.
	if _, err := graph.Build(spec.Tasks); err != nil {
		return &DefinitionError{Workflow: spec.Name, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		return &DefinitionError{Workflow: spec.Name, Err: fmt.Errorf("workflow already registered")}
	}
	r.specs[spec.Name] = spec
	return nil
}

// Get returns the workflow definition for a name, or false if unregistered.
func (r *WorkflowRegistry) Get(name string) (models.WorkflowSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Names returns the registered workflow names in sorted order.
func (r *WorkflowRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered workflows.
func (r *WorkflowRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}
