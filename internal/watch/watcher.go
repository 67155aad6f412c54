// Package watch refreshes the cache of external users whose document is a
// local file as soon as that file changes on disk, typically because a sync
// client delivered an edit from another device.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/userdb/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// RefreshFunc brings the cache of userID up to date.
type RefreshFunc func(ctx context.Context, userID string) error

// Watcher maps watched files to users and calls a RefreshFunc for a user
// once its file has been quiet for the debounce interval.
type Watcher struct {
	fs       *fsnotify.Watcher
	refresh  RefreshFunc
	debounce time.Duration
	log      logging.Logger

	mu     sync.Mutex
	files  map[string][]string
	dirs   map[string]bool
	timers map[string]*time.Timer

	due  chan string
	done chan struct{}
}

func New(refresh RefreshFunc, debounce time.Duration, log logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{
		fs:       fw,
		refresh:  refresh,
		debounce: debounce,
		log:      log,
		files:    make(map[string][]string),
		dirs:     make(map[string]bool),
		timers:   make(map[string]*time.Timer),
		due:      make(chan string, 16),
		done:     make(chan struct{}),
	}, nil
}

// Add starts watching path on behalf of userID. The parent directory is
// watched so replacements by rename are seen.
func (w *Watcher) Add(userID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = append(w.files[abs], userID)
	return nil
}

// Close releases the underlying fsnotify watcher. Run calls it on exit.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run processes events until ctx is done, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		close(w.done)
		w.stopTimers()
		_ = w.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watcher error", "error", err)

		case userID := <-w.due:
			if err := w.refresh(ctx, userID); err != nil {
				w.log.Warn(ctx, "refresh failed", "user", userID, "error", err)
				continue
			}
			w.log.Debug(ctx, "refreshed after external change", "user", userID)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, userID := range w.files[filepath.Clean(event.Name)] {
		w.log.Debug(ctx, "document changed", "user", userID, "op", event.Op.String())
		w.schedule(userID)
	}
}

// schedule (re)arms the debounce timer of userID. Callers hold mu.
func (w *Watcher) schedule(userID string) {
	if t, ok := w.timers[userID]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[userID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, userID)
		w.mu.Unlock()

		select {
		case w.due <- userID:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}
