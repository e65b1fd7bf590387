package store

import (
	"io"
	"sort"
	"sync"

	"github.com/0xmhha/session-metrics/pkg/metrics"
)

// memoryStore implements Store using in-memory maps.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string]metrics.Record
	sources map[string]Fingerprint
}

// NewMemory creates an in-memory Store.
//
// Useful for testing or when persistence is not needed.
func NewMemory() Store {
	return &memoryStore{
		records: make(map[string]metrics.Record),
		sources: make(map[string]Fingerprint),
	}
}

// Put implements Store.Put.
func (s *memoryStore) Put(rec *metrics.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Key()] = *rec
	return nil
}

// Get implements Store.Get.
func (s *memoryStore) Get(key string) (*metrics.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

// List implements Store.List.
func (s *memoryStore) List() ([]metrics.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]metrics.Record, 0, len(keys))
	for _, k := range keys {
		records = append(records, s.records[k])
	}
	return records, nil
}

// Delete implements Store.Delete.
func (s *memoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return ErrRecordNotFound
	}
	delete(s.records, key)
	return nil
}

// Count implements Store.Count.
func (s *memoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Seen implements Store.Seen.
func (s *memoryStore) Seen(path string, fp Fingerprint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.sources[path]
	return ok && stored == fp, nil
}

// MarkSeen implements Store.MarkSeen.
func (s *memoryStore) MarkSeen(path string, fp Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources[path] = fp
	return nil
}

// ExportJSON implements Store.ExportJSON.
func (s *memoryStore) ExportJSON(w io.Writer) error {
	records, err := s.List()
	if err != nil {
		return err
	}
	return writeJSON(w, records)
}

// Close implements Store.Close.
func (s *memoryStore) Close() error {
	return nil
}
