package ports

import (
	"time"

	"github.com/monaca/localkit/internal/domain/entities"
)

// ProjectWatcher observes one project's content subtree and emits typed
// change events. Run stops any previous watch on the same instance before
// starting a new one.
type ProjectWatcher interface {
	// Run starts watching the given directory tree. It fails if the
	// directory does not exist.
	Run(dir string) error
	// Stop releases the watch; safe to call when not running.
	Stop() error
	// IsRunning reports whether the watcher is currently active.
	IsRunning() bool
	// Events returns the channel of observed changes.
	Events() <-chan FileChangeEvent
}

// FileChangeEvent is a raw change observed under a watched directory.
// Path is absolute; the registry translates it into a project-relative
// entities.FileEvent.
type FileChangeEvent struct {
	Path      string
	Type      entities.ChangeType
	IsDir     bool
	Timestamp time.Time
}

// WatcherFactory builds a fresh watcher for a project's content root.
type WatcherFactory func() ProjectWatcher
