// Package graph builds and partitions the task dependency graph of a workflow.
package graph

import (
	"errors"
	"fmt"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph represents a directed acyclic graph of task dependencies.
// Tasks are nodes, and edges represent "blocked by" relationships.
type DependencyGraph struct {
	// nodes maps task ID to the task definition.
	nodes map[string]models.TaskSpec
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// order preserves declaration order of task IDs for deterministic output.
	order []string
}

// Build constructs a dependency graph from the tasks of one workflow.
// Returns an error if a task ID is duplicated, a dependency references an
// unknown task, or the graph contains a cycle.
func Build(tasks []models.TaskSpec) (*DependencyGraph, error) {
	g := &DependencyGraph{
		nodes: make(map[string]models.TaskSpec, len(tasks)),
		edges: make(map[string][]string, len(tasks)),
		order: make([]string, 0, len(tasks)),
	}

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if _, exists := g.nodes[task.ID]; exists {
			return nil, fmt.Errorf("duplicate task id %s", task.ID)
		}
		g.nodes[task.ID] = task
		g.edges[task.ID] = nil
		g.order = append(g.order, task.ID)
	}

	// Second pass: build edges from Dependencies fields.
	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("task %s depends on unknown task %s", task.ID, depID)
			}
			g.edges[task.ID] = append(g.edges[task.ID], depID)
		}
	}

	if g.hasCycle() {
		return nil, ErrCycleDetected
	}

	return g, nil
}

// hasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with coloring to detect back edges.
func (g *DependencyGraph) hasCycle() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1 // Mark as in progress.

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Found a back edge - cycle detected.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
			// color == 2 means already processed, skip.
		}

		colors[id] = 2 // Mark as done.
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}

	return false
}

// Groups partitions the tasks into ordered execution levels. Group 0 holds
// tasks with no dependencies; group k holds tasks whose dependencies all
// appear in groups below k. Within a group, IDs keep declaration order.
// Returns ErrCycleDetected if an iteration makes no progress while tasks
// remain ungrouped.
func (g *DependencyGraph) Groups() ([][]string, error) {
	grouped := make(map[string]bool, len(g.nodes))
	var groups [][]string

	for len(grouped) < len(g.nodes) {
		var level []string
		for _, id := range g.order {
			if grouped[id] {
				continue
			}
			ready := true
			for _, depID := range g.edges[id] {
				if !grouped[depID] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, id)
			}
		}

		if len(level) == 0 {
			// No progress with tasks remaining means a cycle.
			return nil, ErrCycleDetected
		}

		for _, id := range level {
			grouped[id] = true
		}
		groups = append(groups, level)
	}

	return groups, nil
}

// Task returns the task definition for a given ID and whether it exists.
func (g *DependencyGraph) Task(id string) (models.TaskSpec, bool) {
	t, ok := g.nodes[id]
	return t, ok
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *DependencyGraph) Dependencies(taskID string) []string {
	return g.edges[taskID]
}

// Dependents returns the IDs of tasks that depend on the given task,
// in declaration order.
func (g *DependencyGraph) Dependents(taskID string) []string {
	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}
