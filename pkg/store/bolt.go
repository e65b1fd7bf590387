package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/metrics"
)

// Bucket names.
var (
	bucketRecords = []byte("records") // directoryId/taskId -> Record
	bucketSources = []byte("sources") // segment path -> Fingerprint
)

// boltStore implements Store using BoltDB.
type boltStore struct {
	db     *bolt.DB
	logger logger.Logger
}

// Open opens (creating if needed) a BoltDB-backed store.
//
// Parameters:
//   - cfg: Store configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Store
//   - Error if the database cannot be opened
func Open(cfg Config, log logger.Logger) (Store, error) {
	if cfg.DBPath == "" {
		return nil, ErrEmptyPath
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := expandHome(cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketSources} {
			if _, createErr := tx.CreateBucketIfNotExists(name); createErr != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, createErr)
			}
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error", "error", closeErr)
		}
		return nil, err
	}

	log.Info("record store opened", "db_path", dbPath)

	return &boltStore{db: db, logger: log}, nil
}

// Put implements Store.Put.
func (s *boltStore) Put(rec *metrics.Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	data, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if putErr := tx.Bucket(bucketRecords).Put([]byte(rec.Key()), data); putErr != nil {
			return fmt.Errorf("failed to store record: %w", putErr)
		}
		s.logger.Debug("record stored", "key", rec.Key(), "mode", rec.Mode)
		return nil
	})
}

// Get implements Store.Get.
func (s *boltStore) Get(key string) (*metrics.Record, error) {
	var rec *metrics.Record

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRecords).Get([]byte(key))
		if data == nil {
			return ErrRecordNotFound
		}

		var r metrics.Record
		if unmarshalErr := sonic.Unmarshal(data, &r); unmarshalErr != nil {
			return fmt.Errorf("failed to unmarshal record: %w", unmarshalErr)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// List implements Store.List.
func (s *boltStore) List() ([]metrics.Record, error) {
	records := make([]metrics.Record, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var r metrics.Record
			if err := sonic.Unmarshal(v, &r); err != nil {
				s.logger.Warn("skipping corrupt record", "key", string(k), "error", err)
				return nil
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Delete implements Store.Delete.
func (s *boltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if b.Get([]byte(key)) == nil {
			return ErrRecordNotFound
		}
		return b.Delete([]byte(key))
	})
}

// Count implements Store.Count.
func (s *boltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketRecords).Stats().KeyN
		return nil
	})
	return n, err
}

// Seen implements Store.Seen.
func (s *boltStore) Seen(path string, fp Fingerprint) (bool, error) {
	var seen bool

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSources).Get([]byte(path))
		if data == nil {
			return nil
		}

		var stored Fingerprint
		if err := sonic.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal fingerprint: %w", err)
		}
		seen = stored == fp
		return nil
	})

	return seen, err
}

// MarkSeen implements Store.MarkSeen.
func (s *boltStore) MarkSeen(path string, fp Fingerprint) error {
	data, err := sonic.Marshal(fp)
	if err != nil {
		return fmt.Errorf("failed to marshal fingerprint: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSources).Put([]byte(path), data)
	})
}

// ExportJSON implements Store.ExportJSON.
func (s *boltStore) ExportJSON(w io.Writer) error {
	records, err := s.List()
	if err != nil {
		return err
	}
	return writeJSON(w, records)
}

// Close implements Store.Close.
func (s *boltStore) Close() error {
	return s.db.Close()
}

// writeJSON writes records as an indented JSON array.
func writeJSON(w io.Writer, records []metrics.Record) error {
	if records == nil {
		records = []metrics.Record{}
	}

	data, err := sonic.ConfigStd.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

func validateRecord(rec *metrics.Record) error {
	if rec == nil || (rec.TaskID == "" && rec.DirectoryID == "") {
		return ErrInvalidRecord
	}
	return nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
