package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deploy.yaml", `
name: deploy
description: Build and ship
max_parallel: 2
auto_retry: true
tasks:
  - id: build
    name: Build the binary
    agent: shell
    command: make build
    required: true
  - id: ship
    name: Ship it
    agent: shell
    command: make deploy
    dependencies: [build]
    required: true
    sensitive: true
    max_retries: 2
`)

	spec, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if spec.Name != "deploy" {
		t.Errorf("expected name deploy, got %s", spec.Name)
	}
	if spec.MaxParallel != 2 || !spec.AutoRetry {
		t.Errorf("unexpected policy fields: %+v", spec)
	}
	if len(spec.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(spec.Tasks))
	}

	ship := spec.Tasks[1]
	if ship.ID != "ship" || !ship.Sensitive || ship.MaxRetries != 2 {
		t.Errorf("unexpected ship task: %+v", ship)
	}
	if len(ship.Dependencies) != 1 || ship.Dependencies[0] != "build" {
		t.Errorf("expected ship to depend on build, got %v", ship.Dependencies)
	}
}

func TestLoadFileNameFallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nightly-sync.yaml", `
tasks:
  - id: sync
    agent: shell
    command: rsync
`)

	spec, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if spec.Name != "nightly-sync" {
		t.Errorf("expected name from file base, got %s", spec.Name)
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.yaml", "tasks: [unclosed")

	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error for invalid YAML")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-second.yaml", "name: second\ntasks: [{id: a, agent: shell}]")
	writeFile(t, dir, "a-first.yml", "name: first\ntasks: [{id: a, agent: shell}]")
	writeFile(t, dir, "notes.txt", "not a workflow")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "nested"), "ignored.yaml", "name: ignored\ntasks: [{id: a, agent: shell}]")

	specs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 workflows, got %d", len(specs))
	}
	// Sorted by file name, not workflow name.
	if specs[0].Name != "first" || specs[1].Name != "second" {
		t.Errorf("unexpected order: %s, %s", specs[0].Name, specs[1].Name)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestIsWorkflowFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"deploy.yaml", true},
		{"deploy.yml", true},
		{"DEPLOY.YAML", true},
		{"deploy.json", false},
		{"deploy", false},
	}
	for _, tt := range tests {
		if got := isWorkflowFile(tt.name); got != tt.want {
			t.Errorf("isWorkflowFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
