// Package watch reloads the configuration when the config file changes
// on disk, so pricing edits take effect without a restart.
package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the event bursts editors emit on save
// (write + chmod, or remove + rename for atomic replacers).
const debounceWindow = 250 * time.Millisecond

// Watcher uses fsnotify to watch a single config file. The parent
// directory is watched rather than the file itself: editors that save via
// rename-and-replace would otherwise detach the watch on first save.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	reload    func() error
	mu        sync.Mutex
	timer     *time.Timer
	done      chan struct{}
	logger    *slog.Logger
}

// NewWatcher creates a Watcher for the config file at path. reload is
// invoked, debounced, after each change. Call Start to begin processing.
func NewWatcher(path string, reload func() error, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		fsWatcher: fsw,
		path:      filepath.Clean(path),
		reload:    reload,
		done:      make(chan struct{}),
		logger:    logger.With("component", "watch.Watcher"),
	}

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins watching for filesystem events in a background goroutine.
// It returns immediately. Call Stop to shut down.
func (w *Watcher) Start() error {
	go w.loop()
	return nil
}

// Stop shuts down the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("config file changed",
		"path", event.Name,
		"op", event.Op.String(),
	)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, w.fire)
}

func (w *Watcher) fire() {
	select {
	case <-w.done:
		return
	default:
	}

	if err := w.reload(); err != nil {
		w.logger.Error("config reload failed, keeping previous configuration",
			"path", w.path,
			"error", err,
		)
		return
	}
	w.logger.Info("configuration reloaded", "path", w.path)
}
