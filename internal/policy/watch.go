package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Watcher waits after the last write before
// reloading.
const DefaultDebounce = 500 * time.Millisecond

// WatchEvent is one reload attempt of a watched policy file.
type WatchEvent struct {
	Path     string
	Hash     string
	Doc      *Document
	Warnings []string
	Err      error
}

// Watcher reloads a policy file whenever it changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	Debounce time.Duration
}

// NewWatcher watches the directory holding path, so editors that replace
// the file by rename are still seen.
func NewWatcher(path string) (*Watcher, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}
	return &Watcher{watcher: w, path: abs, Debounce: DefaultDebounce}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Reload loads the watched file once.
func (w *Watcher) Reload() WatchEvent {
	ev := WatchEvent{Path: w.path}
	ev.Doc, ev.Hash, ev.Err = LoadWithHash(w.path)
	if ev.Err == nil {
		ev.Warnings = Lint(ev.Doc)
	}
	return ev
}

// Run calls fn with the result of every debounced reload. fn runs on the
// calling goroutine, never after Run returns. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, fn func(WatchEvent)) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-fire:
			fire = nil
			fn(w.Reload())

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce == nil {
					debounce = time.NewTimer(w.Debounce)
				} else {
					debounce.Reset(w.Debounce)
				}
				fire = debounce.C
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", w.path, err)
		}
	}
}
