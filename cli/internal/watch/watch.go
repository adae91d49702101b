// Package watch runs a callback whenever a datamodel file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/satishbabariya/prisma-engines-go/internal/debug"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches one file.
type Watcher struct {
	file     string
	debounce time.Duration
	callback func(ctx context.Context) error
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for file. The directory is watched so
// editors that replace the file on save are followed.
func NewWatcher(file string, debounce time.Duration, callback func(ctx context.Context) error) (*Watcher, error) {
	absPath, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	return &Watcher{
		file:     absPath,
		debounce: debounce,
		callback: callback,
		watcher:  watcher,
	}, nil
}

// Run calls the callback once, then after every change of the file until
// ctx is done. Callback errors are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(ctx); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if path, err := filepath.Abs(event.Name); err != nil || path != w.file {
				continue
			}
			timer.Reset(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.callback(ctx); err != nil {
				debug.Failure("watch callback failed", err, "file", w.file)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			debug.Warn("watch error", "file", w.file, "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}
