// Package watch re-instruments Go files as they change on disk. It drives
// the rewriter from filesystem events, debouncing rapid editor saves so a
// burst of writes produces one rewrite.
package watch

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"assertlens/internal/logging"
)

// RewriteFunc is invoked for each settled .go file change.
type RewriteFunc func(ctx context.Context, path string) error

// Stats tracks watcher activity for debugging and tests.
type Stats struct {
	FilesChanged  int
	RewritesRun   int
	RewriteErrors int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// Watcher monitors directories and re-runs instrumentation on change.
type Watcher struct {
	mu           sync.RWMutex
	watcher      *fsnotify.Watcher
	dirs         []string
	outputSuffix string
	rewrite      RewriteFunc
	debounceMap  map[string]time.Time
	debounceDur  time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
	stats        Stats
}

// New creates a watcher over dirs. outputSuffix names the generated-file
// suffix so the watcher never reacts to its own output.
func New(dirs []string, outputSuffix string, rewrite RewriteFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:      fw,
		dirs:         dirs,
		outputSuffix: outputSuffix,
		rewrite:      rewrite,
		debounceMap:  make(map[string]time.Time),
		debounceDur:  500 * time.Millisecond,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop or context cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			logging.Get(logging.CategoryWatch).Warn("watch failed for %s: %v", dir, err)
			continue
		}
		logging.Watch("watching directory: %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("watcher stopped")
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.wantsFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	logging.WatchDebug("change event for %s", event.Name)

	w.mu.Lock()
	w.stats.FilesChanged++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// wantsFile reports whether a path is a rewrite candidate: a .go source
// file that is neither a test nor previously generated output.
func (w *Watcher) wantsFile(path string) bool {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".go") {
		return false
	}
	if strings.HasSuffix(base, "_test.go") {
		return false
	}
	if w.outputSuffix != "" && strings.HasSuffix(strings.TrimSuffix(base, ".go"), w.outputSuffix) {
		return false
	}
	return true
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		logging.Watch("re-instrumenting %s", path)
		err := w.rewrite(ctx, path)

		w.mu.Lock()
		w.stats.RewritesRun++
		if err != nil {
			w.stats.RewriteErrors++
		}
		w.mu.Unlock()

		if err != nil {
			logging.Get(logging.CategoryWatch).Error("rewrite of %s failed: %v", path, err)
		}
	}
}
