// Package loader reads workflow definitions from YAML files and keeps a
// definitions directory in sync with the workflow registry.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// LoadFile reads a single workflow definition from a YAML file.
// Structural validation (cycles, unknown dependencies) happens at
// registration, not here; this only checks that the document decodes.
func LoadFile(path string) (models.WorkflowSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.WorkflowSpec{}, fmt.Errorf("read workflow file: %w", err)
	}

	var spec models.WorkflowSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return models.WorkflowSpec{}, fmt.Errorf("parse workflow file %s: %w", path, err)
	}
	if spec.Name == "" {
		// Fall back to the file name so bare task lists stay usable.
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return spec, nil
}

// LoadDir reads every .yaml/.yml workflow definition in a directory,
// sorted by file name. Subdirectories are not traversed.
func LoadDir(dir string) ([]models.WorkflowSpec, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workflow directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isWorkflowFile(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	specs := make([]models.WorkflowSpec, 0, len(paths))
	for _, path := range paths {
		spec, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}

	return specs, nil
}

// isWorkflowFile reports whether a file name looks like a workflow definition.
func isWorkflowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
