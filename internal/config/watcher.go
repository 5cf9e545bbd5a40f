package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watcher observes the origin-map file and signals when its content changes.
// The parent directory is watched rather than the file itself so atomic
// rename-into-place saves are still seen.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
	done    chan struct{}
	logger  *slog.Logger
}

// NewWatcher starts watching the origin map at path. Change notifications are
// debounced and delivered on Events; a slow consumer drops signals instead of
// blocking the watch loop.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve origin map path: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(absolute)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(absolute), err)
	}

	w := &Watcher{
		watcher: fsWatcher,
		events:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}
	go w.run(absolute)
	return w, nil
}

// Events yields one signal per debounced batch of file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watch loop and releases the underlying watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run(path string) {
	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("origin map watch error", "error", err)
		}
	}
}
