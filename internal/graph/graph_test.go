package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

func task(id string, deps ...string) models.TaskSpec {
	return models.TaskSpec{ID: id, Name: id, Agent: "test", Dependencies: deps}
}

func TestBuildSimpleChain(t *testing.T) {
	g, err := Build([]models.TaskSpec{
		task("a"),
		task("b", "a"),
		task("c", "b"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected 3 tasks, got %d", g.Size())
	}

	deps := g.Dependencies("c")
	if len(deps) != 1 || deps[0] != "b" {
		t.Errorf("expected c to depend on [b], got %v", deps)
	}

	dependents := g.Dependents("a")
	if len(dependents) != 1 || dependents[0] != "b" {
		t.Errorf("expected a's dependents to be [b], got %v", dependents)
	}
}

func TestBuildDuplicateID(t *testing.T) {
	_, err := Build([]models.TaskSpec{
		task("a"),
		task("a"),
	})
	if err == nil {
		t.Fatal("expected error for duplicate task id")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate error, got: %v", err)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	_, err := Build([]models.TaskSpec{
		task("a", "ghost"),
	})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if !strings.Contains(err.Error(), "unknown") {
		t.Errorf("expected unknown dependency error, got: %v", err)
	}
}

func TestBuildCycleDetected(t *testing.T) {
	_, err := Build([]models.TaskSpec{
		task("a", "c"),
		task("b", "a"),
		task("c", "b"),
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got: %v", err)
	}
}

func TestBuildSelfCycle(t *testing.T) {
	_, err := Build([]models.TaskSpec{
		task("a", "a"),
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected for self-dependency, got: %v", err)
	}
}

func TestGroupsChain(t *testing.T) {
	g, err := Build([]models.TaskSpec{
		task("a"),
		task("b", "a"),
		task("c", "b"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	groups, err := g.Groups()
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %v", len(groups), groups)
	}
	for i, want := range []string{"a", "b", "c"} {
		if len(groups[i]) != 1 || groups[i][0] != want {
			t.Errorf("group %d: expected [%s], got %v", i, want, groups[i])
		}
	}
}

func TestGroupsDiamond(t *testing.T) {
	g, err := Build([]models.TaskSpec{
		task("a"),
		task("b", "a"),
		task("c", "a"),
		task("d", "b", "c"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	groups, err := g.Groups()
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d: %v", len(groups), groups)
	}
	if len(groups[0]) != 1 || groups[0][0] != "a" {
		t.Errorf("group 0: expected [a], got %v", groups[0])
	}
	if len(groups[1]) != 2 || groups[1][0] != "b" || groups[1][1] != "c" {
		t.Errorf("group 1: expected [b c], got %v", groups[1])
	}
	if len(groups[2]) != 1 || groups[2][0] != "d" {
		t.Errorf("group 2: expected [d], got %v", groups[2])
	}
}

// Every task must appear in exactly one group, and each task's group index
// must be strictly greater than the group index of every dependency.
func TestGroupsPartitionProperty(t *testing.T) {
	tasks := []models.TaskSpec{
		task("root1"),
		task("root2"),
		task("mid1", "root1"),
		task("mid2", "root1", "root2"),
		task("leaf1", "mid1", "mid2"),
		task("leaf2", "mid2"),
		task("solo"),
	}
	g, err := Build(tasks)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	groups, err := g.Groups()
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}

	groupOf := make(map[string]int)
	for k, group := range groups {
		for _, id := range group {
			if prev, seen := groupOf[id]; seen {
				t.Errorf("task %s appears in group %d and %d", id, prev, k)
			}
			groupOf[id] = k
		}
	}
	if len(groupOf) != len(tasks) {
		t.Errorf("expected %d grouped tasks, got %d", len(tasks), len(groupOf))
	}

	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if groupOf[depID] >= groupOf[task.ID] {
				t.Errorf("task %s (group %d) must come after dependency %s (group %d)",
					task.ID, groupOf[task.ID], depID, groupOf[depID])
			}
		}
	}
}

func TestGroupsDeclarationOrderWithinGroup(t *testing.T) {
	g, err := Build([]models.TaskSpec{
		task("z"),
		task("m"),
		task("a"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	groups, err := g.Groups()
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	want := []string{"z", "m", "a"}
	for i, id := range want {
		if groups[0][i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, groups[0][i])
		}
	}
}

func TestTaskLookup(t *testing.T) {
	g, err := Build([]models.TaskSpec{task("a")})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, ok := g.Task("a"); !ok {
		t.Error("expected to find task a")
	}
	if _, ok := g.Task("missing"); ok {
		t.Error("expected missing task to not be found")
	}
}

func TestBuildEmpty(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("Build failed for empty task list: %v", err)
	}
	groups, err := g.Groups()
	if err != nil {
		t.Fatalf("Groups failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups for empty graph, got %v", groups)
	}
}
