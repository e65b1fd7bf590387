package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/0xmhha/session-metrics/pkg/discovery"
	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/segment"
	"github.com/0xmhha/session-metrics/pkg/store"
	"github.com/0xmhha/session-metrics/pkg/watcher"
)

// monitor implements the Monitor interface.
type monitor struct {
	config Config
	deps   Deps
	logger logger.Logger

	// ingestMu serializes ingests so a watcher event and a Sync never
	// extract the same file concurrently.
	ingestMu sync.Mutex

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	updates chan Update
}

// New creates a new monitor.
//
// Parameters:
//   - cfg: Monitor configuration
//   - deps: Discoverer, Extractor and Store are required; Watcher is
//     required by Start; Observer is optional
//   - log: Logger instance
func New(cfg Config, deps Deps, log logger.Logger) Monitor {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	return &monitor{
		config:   cfg,
		deps:     deps,
		logger:   log,
		stopChan: make(chan struct{}),
		updates:  make(chan Update, 10),
	}
}

// Sync implements Monitor.Sync.
func (m *monitor) Sync(ctx context.Context) (Result, error) {
	files, err := m.deps.Discoverer.Discover()
	if err != nil {
		return Result{}, fmt.Errorf("failed to discover segments: %w", err)
	}

	var total Result
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		res, err := m.ingest(ctx, file)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}

	if err := m.export(total); err != nil {
		return total, err
	}

	m.logger.Info("sync complete",
		"files", total.Files,
		"unchanged", total.Unchanged,
		"failed", total.Failed,
		"extracted", total.Extracted,
		"skipped", total.Skipped)

	return total, nil
}

// IngestFile implements Monitor.IngestFile.
func (m *monitor) IngestFile(ctx context.Context, file discovery.SegmentFile) (Result, error) {
	res, err := m.ingest(ctx, file)
	if err != nil {
		return res, err
	}
	return res, m.export(res)
}

// ingest processes one file without exporting.
func (m *monitor) ingest(ctx context.Context, file discovery.SegmentFile) (Result, error) {
	m.ingestMu.Lock()
	defer m.ingestMu.Unlock()

	res := Result{Files: 1}
	log := m.logger.With("path", file.Path)
	fp := store.Fingerprint{Size: file.Size, ModTime: file.ModTime}

	seen, err := m.deps.Store.Seen(file.Path, fp)
	if err != nil {
		return res, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	if seen {
		res.Unchanged = 1
		log.Debug("segment file unchanged, skipping")
		return res, nil
	}

	segs, err := segment.LoadFile(file.Path)
	var partial *segment.PartialError
	switch {
	case err == nil:
	case errors.As(err, &partial) && len(segs) > 0:
		for _, le := range partial.Failed {
			res.Segments++
			res.Skipped++
			m.deps.Observer.SegmentSkipped(SkipLoad)
			log.Warn("failed to decode segment, skipping", "index", le.Index, "error", le.Err)
		}
	default:
		res.Failed = 1
		m.deps.Observer.SegmentSkipped(SkipLoad)
		log.Warn("failed to load segment file", "error", err)
		return res, nil
	}

	for i := range segs {
		if segs[i].DirectoryID == "" {
			segs[i].DirectoryID = segment.ID(file.DirectoryID)
		}
	}
	res.Segments += len(segs)

	records, skipped, err := m.deps.Extractor.ExtractAll(ctx, segs, m.config.FallbackTestType)
	if err != nil {
		return res, fmt.Errorf("extraction interrupted: %w", err)
	}

	for i := 0; i < skipped; i++ {
		m.deps.Observer.SegmentSkipped(SkipExtract)
	}
	res.Skipped += skipped

	for i := range records {
		if err := m.deps.Store.Put(&records[i]); err != nil {
			if errors.Is(err, store.ErrInvalidRecord) {
				res.Skipped++
				m.deps.Observer.SegmentSkipped(SkipExtract)
				log.Warn("record has no identity, skipping", "index", i)
				continue
			}
			return res, fmt.Errorf("failed to store record: %w", err)
		}
		res.Extracted++
		m.deps.Observer.SegmentExtracted(records[i].Mode)
	}

	if err := m.deps.Store.MarkSeen(file.Path, fp); err != nil {
		return res, fmt.Errorf("failed to record fingerprint: %w", err)
	}

	log.Debug("segment file ingested",
		"segments", res.Segments,
		"extracted", res.Extracted,
		"skipped", res.Skipped)

	return res, nil
}

// export rewrites the configured summary file after new records.
func (m *monitor) export(res Result) error {
	if m.config.ExportPath == "" || res.Extracted == 0 {
		return nil
	}

	if err := store.WriteFile(m.deps.Store, m.config.ExportPath); err != nil {
		return fmt.Errorf("failed to export summary: %w", err)
	}

	m.logger.Debug("summary exported", "path", m.config.ExportPath)
	return nil
}

// Start implements Monitor.Start.
func (m *monitor) Start(ctx context.Context) error {
	if m.deps.Watcher == nil {
		return ErrNoWatcher
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.running = true
	m.mu.Unlock()

	if _, err := m.Sync(ctx); err != nil {
		m.setStopped()
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if err := m.deps.Watcher.Start(ctx, m.config.SegmentDirs); err != nil {
		m.setStopped()
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	go m.processEvents(ctx)

	m.logger.Info("monitor started", "dirs", m.config.SegmentDirs)
	return nil
}

func (m *monitor) setStopped() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Stop implements Monitor.Stop.
func (m *monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMonitorClosed
	}
	if !m.running {
		return ErrMonitorNotRunning
	}

	close(m.stopChan)
	m.running = false

	if err := m.deps.Watcher.Stop(); err != nil {
		m.logger.Warn("failed to stop watcher", "error", err)
	}

	m.logger.Info("monitor stopped")
	return nil
}

// Updates implements Monitor.Updates.
func (m *monitor) Updates() <-chan Update {
	return m.updates
}

// processEvents ingests file change events from the watcher.
func (m *monitor) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-m.stopChan:
			return

		case event, ok := <-m.deps.Watcher.Events():
			if !ok {
				m.logger.Debug("watcher events channel closed")
				return
			}
			m.handleFileChange(ctx, event)

		case err, ok := <-m.deps.Watcher.Errors():
			if !ok {
				m.logger.Debug("watcher errors channel closed")
				return
			}
			m.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFileChange ingests the file named by a watcher event.
func (m *monitor) handleFileChange(ctx context.Context, event watcher.Event) {
	info, err := os.Stat(event.Path)
	if err != nil {
		m.logger.Warn("segment file vanished before ingest", "path", event.Path, "error", err)
		return
	}

	res, err := m.IngestFile(ctx, discovery.SegmentFile{
		Path:        event.Path,
		DirectoryID: event.DirectoryID,
		Size:        info.Size(),
		ModTime:     info.ModTime().UnixNano(),
	})
	if err != nil {
		m.logger.Error("failed to ingest segment file", "path", event.Path, "error", err)
		return
	}

	count, err := m.deps.Store.Count()
	if err != nil {
		m.logger.Warn("failed to count records", "error", err)
	}

	m.sendUpdate(Update{
		Timestamp: time.Now(),
		Path:      event.Path,
		Op:        event.Op,
		Result:    res,
		Records:   count,
	})
}

// sendUpdate delivers an update without blocking ingestion.
func (m *monitor) sendUpdate(u Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	select {
	case m.updates <- u:
	default:
		m.logger.Warn("updates channel full, dropping update")
	}
}

// Close implements Monitor.Close.
func (m *monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true

	if m.running {
		close(m.stopChan)
		m.running = false
	}

	close(m.updates)

	m.logger.Debug("monitor closed")
	return nil
}

type nopObserver struct{}

func (nopObserver) SegmentExtracted(string) {}

func (nopObserver) SegmentSkipped(string) {}
