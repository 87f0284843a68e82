package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
)

// ProjectRegistry is the in-memory set of tracked projects. Each project
// owns one watcher over its content subtree; watcher events are translated
// into FileEvents and pushed onto the Events channel for the broadcaster.
//
// All mutations hold a single mutex because SetAll reads then rewrites the
// whole set.
type ProjectRegistry struct {
	marker     string
	newWatcher ports.WatcherFactory
	logger     *slog.Logger

	mu       sync.Mutex
	projects map[string]*tracked
	order    []string
	watching bool
	closed   bool

	events chan entities.FileEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

type tracked struct {
	project entities.Project
	watcher ports.ProjectWatcher
}

// NewProjectRegistry creates an empty registry. marker is the subdirectory
// that identifies a trackable project (and the watched content root).
func NewProjectRegistry(marker string, newWatcher ports.WatcherFactory, logger *slog.Logger) *ProjectRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProjectRegistry{
		marker:     marker,
		newWatcher: newWatcher,
		logger:     logger.With("component", "registry"),
		projects:   make(map[string]*tracked),
		events:     make(chan entities.FileEvent, 256),
		done:       make(chan struct{}),
	}
}

// Events returns the channel of file events from all tracked projects.
func (r *ProjectRegistry) Events() <-chan entities.FileEvent {
	return r.events
}

// Add registers a project directory. Re-adding an already-tracked path is
// a no-op returning the existing project. The directory must contain the
// project marker subdirectory.
func (r *ProjectRegistry) Add(path string, opts entities.ProjectOptions) (entities.Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entities.Project{}, fmt.Errorf("resolving path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(abs, opts)
}

func (r *ProjectRegistry) addLocked(abs string, opts entities.ProjectOptions) (entities.Project, error) {
	info, err := os.Stat(filepath.Join(abs, r.marker))
	if err != nil || !info.IsDir() {
		return entities.Project{}, fmt.Errorf("%s has no %s directory: %w", abs, r.marker, entities.ErrInvalidArgument)
	}

	id := entities.ProjectID(abs)
	if t, ok := r.projects[id]; ok {
		return t.project, nil
	}

	t := &tracked{project: entities.NewProject(abs, opts)}
	r.projects[id] = t
	r.order = append(r.order, id)

	if r.watching {
		if err := r.startWatchLocked(t); err != nil {
			delete(r.projects, id)
			r.order = r.order[:len(r.order)-1]
			return entities.Project{}, err
		}
	}

	r.logger.Info("project added", slog.String("id", id), slog.String("path", abs))
	return t.project, nil
}

// Remove untracks a project by path, stopping its watcher first. Removing
// an untracked path fails with ErrNotFound.
func (r *ProjectRegistry) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(entities.ProjectID(abs))
}

func (r *ProjectRegistry) removeLocked(id string) error {
	t, ok := r.projects[id]
	if !ok {
		return fmt.Errorf("project %s: %w", id, entities.ErrNotFound)
	}

	if t.watcher != nil {
		if err := t.watcher.Stop(); err != nil {
			r.logger.Warn("stopping watcher", slog.String("id", id), slog.String("error", err.Error()))
		}
		t.watcher = nil
	}

	delete(r.projects, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info("project removed", slog.String("id", id))
	return nil
}

// SetAll reconciles the registry to exactly the given set of paths, adding
// missing projects and removing extras.
func (r *ProjectRegistry) SetAll(paths []string, opts []entities.ProjectOptions) error {
	want := make(map[string]entities.ProjectOptions, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		var o entities.ProjectOptions
		if i < len(opts) {
			o = opts[i]
		}
		want[abs] = o
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Remove extras first so a moved project never exists twice.
	for _, id := range append([]string(nil), r.order...) {
		if _, keep := want[r.projects[id].project.Path]; !keep {
			if err := r.removeLocked(id); err != nil {
				return err
			}
		}
	}

	for abs, o := range want {
		if _, err := r.addLocked(abs, o); err != nil {
			return err
		}
	}
	return nil
}

// List returns all tracked projects in registration order.
func (r *ProjectRegistry) List() []entities.Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]entities.Project, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.projects[id].project)
	}
	return out
}

// ByID looks up a tracked project by identifier.
func (r *ProjectRegistry) ByID(id string) (entities.Project, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.projects[id]
	if !ok {
		return entities.Project{}, false
	}
	return t.project, true
}

// ByPath looks up a tracked project by directory path.
func (r *ProjectRegistry) ByPath(path string) (entities.Project, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entities.Project{}, false
	}
	return r.ByID(entities.ProjectID(abs))
}

// IsWatching reports the global watch flag.
func (r *ProjectRegistry) IsWatching() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watching
}

// WatcherRunning reports whether the given project currently has an
// active watcher.
func (r *ProjectRegistry) WatcherRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.projects[id]
	return ok && t.watcher != nil && t.watcher.IsRunning()
}

// SetWatching toggles the global watch flag. Enabling starts a watcher for
// every tracked project; disabling stops them all. Newly added projects
// are held passively while the flag is off.
func (r *ProjectRegistry) SetWatching(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watching == enabled {
		return nil
	}
	r.watching = enabled

	for _, id := range r.order {
		t := r.projects[id]
		if enabled {
			if err := r.startWatchLocked(t); err != nil {
				return err
			}
		} else if t.watcher != nil {
			if err := t.watcher.Stop(); err != nil {
				r.logger.Warn("stopping watcher", slog.String("id", id), slog.String("error", err.Error()))
			}
			t.watcher = nil
		}
	}
	return nil
}

func (r *ProjectRegistry) startWatchLocked(t *tracked) error {
	w := r.newWatcher()
	root := r.ContentRoot(t.project)

	if err := w.Run(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	t.watcher = w

	r.wg.Add(1)
	go r.pump(t.project, root, w)
	return nil
}

// ContentRoot returns the directory actually served and watched for a
// project, its marker subdirectory.
func (r *ProjectRegistry) ContentRoot(p entities.Project) string {
	return filepath.Join(p.Path, r.marker)
}

// pump translates raw watcher events into FileEvents. It runs until the
// watcher's event channel closes. File content is read here, off the
// watcher's own loop, and the result is enqueued for the broadcaster so
// no network I/O ever happens inline with change detection.
func (r *ProjectRegistry) pump(p entities.Project, root string, w ports.ProjectWatcher) {
	defer r.wg.Done()

	for ev := range w.Events() {
		fe, ok := r.translate(p, root, ev)
		if !ok {
			continue
		}

		select {
		case r.events <- fe:
		case <-r.done:
			return
		}
	}
}

func (r *ProjectRegistry) translate(p entities.Project, root string, ev ports.FileChangeEvent) (entities.FileEvent, bool) {
	rel, err := filepath.Rel(root, ev.Path)
	if err != nil {
		return entities.FileEvent{}, false
	}

	fe := entities.FileEvent{
		ProjectID: p.ID,
		Path:      "/" + filepath.ToSlash(rel),
	}

	switch ev.Type {
	case entities.ChangeResync:
		fe.Type = entities.ChangeResync
		fe.Path = "/"
		return fe, true

	case entities.ChangeDelete:
		fe.Type = entities.ChangeDelete
		return fe, true

	case entities.ChangeMkdir:
		fe.Type = entities.ChangeMkdir
		return fe, true

	case entities.ChangeCreate, entities.ChangeUpdate:
		content, err := os.ReadFile(ev.Path)
		if err != nil {
			// Racing a delete; the delete event will follow.
			r.logger.Debug("reading changed file", slog.String("path", ev.Path), slog.String("error", err.Error()))
			return entities.FileEvent{}, false
		}
		sum := sha256.Sum256(content)
		fe.Type = ev.Type
		fe.Content = content
		fe.Hash = hex.EncodeToString(sum[:])
		return fe, true
	}

	return entities.FileEvent{}, false
}

// Scaffold creates a fresh project directory (with its marker subtree) at
// dest and registers it. A non-empty existing destination fails with
// ErrConflict.
func (r *ProjectRegistry) Scaffold(dest string, opts entities.ProjectOptions) (entities.Project, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return entities.Project{}, fmt.Errorf("resolving path: %w", err)
	}

	if entries, err := os.ReadDir(abs); err == nil && len(entries) > 0 {
		return entities.Project{}, fmt.Errorf("destination %s is not empty: %w", abs, entities.ErrConflict)
	}

	if err := os.MkdirAll(filepath.Join(abs, r.marker), 0o755); err != nil {
		return entities.Project{}, fmt.Errorf("creating project skeleton: %w", err)
	}

	return r.Add(abs, opts)
}

// Close stops all watchers and closes the event channel. The registry is
// unusable afterwards.
func (r *ProjectRegistry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true

	for _, id := range r.order {
		t := r.projects[id]
		if t.watcher != nil {
			_ = t.watcher.Stop()
			t.watcher = nil
		}
	}
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()
	close(r.events)
}
