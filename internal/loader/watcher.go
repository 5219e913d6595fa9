package loader

import (
	"context"
	"fmt"
	"log"

	"github.com/fsnotify/fsnotify"

	"github.com/stagehand-dev/stagehand/pkg/models"
)

// RegisterFunc receives a workflow definition discovered by the watcher.
// Registration errors (for example re-registering an immutable name) are
// reported back so the watcher can log them.
type RegisterFunc func(models.WorkflowSpec) error

// Watcher observes a definitions directory and feeds new or rewritten
// workflow files to a register function. Because registered definitions are
// immutable, an edit to an already-registered workflow is logged and ignored
// until the process restarts.
type Watcher struct {
	dir      string
	register RegisterFunc
	fw       *fsnotify.Watcher
}

// NewWatcher creates a watcher for a definitions directory.
func NewWatcher(dir string, register RegisterFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		register: register,
		fw:       fw,
	}, nil
}

// Run processes filesystem events until the context is cancelled or the
// underlying watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isWorkflowFile(event.Name) {
				continue
			}

			spec, err := LoadFile(event.Name)
			if err != nil {
				log.Printf("[loader] warning: ignoring %s: %v", event.Name, err)
				continue
			}
			if err := w.register(spec); err != nil {
				log.Printf("[loader] warning: could not register %s: %v", spec.Name, err)
				continue
			}
			log.Printf("[loader] registered workflow %s from %s", spec.Name, event.Name)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[loader] watch error: %v", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
