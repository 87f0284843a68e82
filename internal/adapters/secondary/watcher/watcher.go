// Package watcher implements per-project file watching on top of fsnotify.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/monaca/localkit/internal/domain/entities"
	"github.com/monaca/localkit/internal/domain/ports"
)

// fileState tracks what we last saw at a path, used to classify events and
// to suppress directory-metadata touches with no content change.
type fileState struct {
	isDir    bool
	checksum string
}

// ProjectWatcher observes one directory subtree and emits typed change
// events. Run stops any previous watch on the same instance first, so an
// instance never double-watches.
type ProjectWatcher struct {
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	states  map[string]fileState
	events  chan ports.FileChangeEvent
	wg      sync.WaitGroup
}

// New creates a watcher. Writes on the same path are coalesced within the
// debounce window and classified once the path goes quiet.
func New(debounce time.Duration, logger *slog.Logger) *ProjectWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	return &ProjectWatcher{
		debounce: debounce,
		logger:   logger.With("component", "watcher"),
	}
}

// Run starts watching dir recursively. It fails if the directory does not
// exist.
func (w *ProjectWatcher) Run(dir string) error {
	if err := w.Stop(); err != nil {
		return err
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory: %w", abs, entities.ErrInvalidArgument)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	states := make(map[string]fileState)
	if err := addRecursive(fsw, abs, states); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("scanning watch root: %w", err)
	}

	w.mu.Lock()
	w.running = true
	w.fsw = fsw
	w.states = states
	w.events = make(chan ports.FileChangeEvent, 64)
	events := w.events
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(fsw, abs, events)
	return nil
}

// Stop releases the OS-level watch immediately. Safe to call when not
// running.
func (w *ProjectWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	if err := fsw.Close(); err != nil {
		return fmt.Errorf("closing watcher: %w", err)
	}

	w.wg.Wait()
	return nil
}

// IsRunning reports whether the watcher is currently active.
func (w *ProjectWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Events returns the channel of observed changes for the current run. The
// channel closes when the watch stops.
func (w *ProjectWatcher) Events() <-chan ports.FileChangeEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// loop owns the event channel and all state transitions. Write events are
// coalesced through per-path timers feeding the flush channel, so a file
// mid-save is classified once, after it goes quiet.
func (w *ProjectWatcher) loop(fsw *fsnotify.Watcher, root string, events chan ports.FileChangeEvent) {
	defer w.wg.Done()
	defer close(events)

	flush := make(chan string, 64)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	emit := func(ev ports.FileChangeEvent) {
		select {
		case events <- ev:
		default:
			w.logger.Warn("event queue full, dropping", slog.String("path", ev.Path))
		}
	}

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}

			if !isRelevant(ev) {
				continue
			}

			switch {
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				if out, ok := w.classifyRemove(root, ev.Name); ok {
					emit(out)
				}

			case ev.Has(fsnotify.Create):
				if out, ok := w.classifyCreate(fsw, ev.Name); ok {
					emit(out)
				}

			case ev.Has(fsnotify.Write):
				if t, ok := timers[ev.Name]; ok {
					t.Reset(w.debounce)
					continue
				}
				path := ev.Name
				timers[path] = time.AfterFunc(w.debounce, func() {
					select {
					case flush <- path:
					default:
					}
				})
			}

		case path := <-flush:
			if t, ok := timers[path]; ok {
				t.Stop()
				delete(timers, path)
			}
			if out, ok := w.classifyWrite(path); ok {
				emit(out)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *ProjectWatcher) classifyRemove(root, path string) (ports.FileChangeEvent, bool) {
	out := ports.FileChangeEvent{Path: path, Timestamp: time.Now()}

	if path == root {
		// The content root itself moved: the client must refetch.
		out.Type = entities.ChangeResync
		return out, true
	}

	prev, known := w.lookupState(path)
	if !known {
		return out, false
	}

	w.dropState(path)
	out.Type = entities.ChangeDelete
	out.IsDir = prev.isDir
	return out, true
}

func (w *ProjectWatcher) classifyCreate(fsw *fsnotify.Watcher, path string) (ports.FileChangeEvent, bool) {
	out := ports.FileChangeEvent{Path: path, Timestamp: time.Now()}

	info, err := os.Stat(path)
	if err != nil {
		return out, false
	}

	if info.IsDir() {
		w.putState(path, fileState{isDir: true})
		if err := watchSubtree(fsw, path); err != nil {
			w.logger.Warn("watching new directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		out.Type = entities.ChangeMkdir
		out.IsDir = true
		return out, true
	}

	sum, err := checksum(path)
	if err != nil {
		return out, false
	}

	_, known := w.lookupState(path)
	w.putState(path, fileState{checksum: sum})

	if known {
		out.Type = entities.ChangeUpdate
	} else {
		out.Type = entities.ChangeCreate
	}
	return out, true
}

func (w *ProjectWatcher) classifyWrite(path string) (ports.FileChangeEvent, bool) {
	out := ports.FileChangeEvent{Path: path, Timestamp: time.Now()}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted while debouncing; the remove event handles it.
		return out, false
	}
	if info.IsDir() {
		// Directory metadata touch with no content change.
		return out, false
	}

	sum, err := checksum(path)
	if err != nil {
		return out, false
	}

	prev, known := w.lookupState(path)
	if known && prev.checksum == sum {
		return out, false
	}
	w.putState(path, fileState{checksum: sum})

	if known {
		out.Type = entities.ChangeUpdate
	} else {
		out.Type = entities.ChangeCreate
	}
	return out, true
}

func (w *ProjectWatcher) lookupState(path string) (fileState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.states[path]
	return s, ok
}

func (w *ProjectWatcher) putState(path string, s fileState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.states != nil {
		w.states[path] = s
	}
}

func (w *ProjectWatcher) dropState(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.states, path)
}

// addRecursive walks root, registering every directory with the fsnotify
// watcher and recording initial state for every entry.
func addRecursive(fsw *fsnotify.Watcher, root string, states map[string]fileState) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			states[path] = fileState{isDir: true}
			return fsw.Add(path)
		}

		sum, err := checksum(path)
		if err != nil {
			return nil // unreadable files are picked up on first change
		}
		states[path] = fileState{checksum: sum}
		return nil
	})
}

// watchSubtree registers a newly created directory tree; its files arrive
// as create events of their own.
func watchSubtree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// isRelevant filters editor temp files and hidden files, matching the
// ignore behavior of the file provider.
func isRelevant(ev fsnotify.Event) bool {
	if ev.Op == 0 || ev.Op == fsnotify.Chmod {
		return false
	}

	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}

// checksum calculates the SHA256 checksum of a file.
func checksum(path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from the OS watch
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
