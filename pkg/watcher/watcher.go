package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/session-metrics/pkg/discovery"
	"github.com/0xmhha/session-metrics/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	events chan Event
	errors chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// Pending debounced events keyed by path.
	pending    map[string]*pendingEvent
	debounceMu sync.Mutex

	failureCount int
}

// pendingEvent is an event waiting out its debounce interval.
type pendingEvent struct {
	event Event
	timer *time.Timer
}

// New creates a new segment watcher.
//
// Parameters:
//   - cfg: Watcher configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher
//   - Error if the fsnotify watcher cannot be created
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 250 * time.Millisecond
	}
	if cfg.CircuitBreakerThreshold == 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 100
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	log.Debug("segment watcher created",
		"debounce_interval", cfg.DebounceInterval,
		"buffer_size", cfg.BufferSize)

	return &watcher{
		fsw:      fsw,
		logger:   log,
		config:   cfg,
		events:   make(chan Event, cfg.BufferSize),
		errors:   make(chan error, 10),
		stopChan: make(chan struct{}),
		pending:  make(map[string]*pendingEvent),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, paths []string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.mu.Unlock()

	expandedPaths := make([]string, 0, len(paths))
	for _, path := range paths {
		expanded := discovery.ExpandHome(path)

		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn("watch path does not exist, skipping", "path", expanded)
				continue
			}
			return fmt.Errorf("failed to stat path %s: %w", expanded, err)
		}

		expandedPaths = append(expandedPaths, expanded)
	}

	if len(expandedPaths) == 0 {
		return ErrInvalidPath
	}

	for _, path := range expandedPaths {
		if err := w.addPathRecursive(path); err != nil {
			return fmt.Errorf("failed to add path %s: %w", path, err)
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("watching segment directories",
		"paths", expandedPaths,
		"path_count", len(expandedPaths))

	go w.processEvents(ctx)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotStarted
	}

	close(w.stopChan)
	w.running = false

	w.logger.Info("watcher stopped")
	return nil
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.running {
		close(w.stopChan)
		w.running = false
	}
	w.mu.Unlock()

	w.debounceMu.Lock()
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = nil
	w.debounceMu.Unlock()

	// Timers that already fired check closed under mu before sending.
	w.mu.Lock()
	close(w.events)
	close(w.errors)
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Debug("watcher closed")
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-w.stopChan:
			w.logger.Debug("event processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

// handleEvent filters a raw fsnotify event and schedules it.
func (w *watcher) handleEvent(event fsnotify.Event) {
	// A new run directory: watch it and pick up files already written.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchNewDirectory(event.Name)
			return
		}
	}

	if !discovery.IsSegmentFile(event.Name) {
		return
	}

	var op Op
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OpCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OpWrite
	default:
		return
	}

	w.debounceEvent(Event{
		Path:        event.Name,
		DirectoryID: filepath.Base(filepath.Dir(event.Name)),
		Op:          op,
		Timestamp:   time.Now(),
	})
}

// watchNewDirectory adds a freshly created directory and emits create
// events for segment files that landed before the watch was in place.
func (w *watcher) watchNewDirectory(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}
	w.logger.Debug("added watch subdirectory", "path", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !discovery.IsSegmentFile(entry.Name()) {
			continue
		}
		w.debounceEvent(Event{
			Path:        filepath.Join(dir, entry.Name()),
			DirectoryID: filepath.Base(dir),
			Op:          OpCreate,
			Timestamp:   time.Now(),
		})
	}
}

// debounceEvent coalesces events per path. The first op in a window
// wins so a create followed by writes is reported as a create.
func (w *watcher) debounceEvent(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.pending == nil {
		return
	}

	if p, exists := w.pending[event.Path]; exists {
		p.timer.Stop()
		p.event.Timestamp = event.Timestamp
		p.timer = time.AfterFunc(w.config.DebounceInterval, func() { w.emit(event.Path) })
		return
	}

	w.pending[event.Path] = &pendingEvent{
		event: event,
		timer: time.AfterFunc(w.config.DebounceInterval, func() { w.emit(event.Path) }),
	}
}

// emit delivers the pending event for path.
func (w *watcher) emit(path string) {
	w.debounceMu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	w.debounceMu.Unlock()

	if !ok {
		return
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return
	}

	select {
	case w.events <- p.event:
	default:
		w.logger.Warn("event channel full, dropping event", "path", path)
	}
}

// handleError reports fsnotify errors, switching to ErrCircuitBreakerOpen
// once the threshold is reached.
func (w *watcher) handleError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.failureCount++

	w.logger.Error("fsnotify error",
		"error", err,
		"failure_count", w.failureCount)

	report := err
	if w.failureCount >= w.config.CircuitBreakerThreshold {
		w.logger.Error("circuit breaker opened",
			"threshold", w.config.CircuitBreakerThreshold)
		report = ErrCircuitBreakerOpen
	}

	select {
	case w.errors <- report:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// addPathRecursive adds a path and all subdirectories to the watcher.
func (w *watcher) addPathRecursive(path string) error {
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("failed to add path: %w", err)
	}

	w.logger.Debug("added watch path", "path", path)

	return filepath.WalkDir(path, func(subPath string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("error walking path",
				"path", subPath,
				"error", err)
			return nil
		}

		if !d.IsDir() || subPath == path {
			return nil
		}

		if addErr := w.fsw.Add(subPath); addErr != nil {
			w.logger.Warn("failed to add subdirectory",
				"path", subPath,
				"error", addErr)
			return nil
		}

		w.logger.Debug("added watch subdirectory", "path", subPath)
		return nil
	})
}
