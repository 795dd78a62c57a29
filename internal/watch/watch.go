// Package watch reports changed files under a set of directories, coalescing
// bursts of writes to the same file.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 250 * time.Millisecond

type Watcher struct {
	// Debounce is how long a file must stay quiet before Handler sees it.
	Debounce time.Duration
	// Filter restricts which paths are reported. Nil reports every file.
	Filter  func(path string) bool
	Handler func(path string)
	Logger  *slog.Logger

	fw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New watches dirs (not recursively).
func New(dirs []string, handler func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return &Watcher{
		Debounce: DefaultDebounce,
		Handler:  handler,
		fw:       fw,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run delivers changes until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if w.Filter != nil && !w.Filter(path) {
				continue
			}
			logger.Debug("file changed", "path", path, "op", event.Op.String())
			w.schedule(path)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "err", err)
		}
	}
}

func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// A timer that already fired is left to deliver its burst; this event
	// starts a new one.
	if t, ok := w.timers[path]; ok && t.Stop() {
		t.Reset(w.Debounce)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(w.Debounce, func() {
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		w.Handler(path)
	})
	w.timers[path] = t
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	_ = w.fw.Close()
}
