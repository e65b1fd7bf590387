// Package discovery finds recorded segment files under the configured
// segment directories.
//
// Two layouts are recognized: segment files placed directly in a base
// directory, and segment files one level down in per-run
// subdirectories. The containing directory's name becomes the
// DirectoryID of every file found in it.
//
// Example usage:
//
//	d := discovery.New([]string{"~/segments"}, logger.Default())
//	files, err := d.Discover()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range files {
//	    fmt.Printf("Segment: %s (directory %s)\n", f.Path, f.DirectoryID)
//	}
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SegmentExt is the file extension of segment files.
const SegmentExt = ".json"

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SegmentFile represents a discovered segment file.
type SegmentFile struct {
	// Path is the path to the segment file.
	Path string

	// DirectoryID is the name of the directory containing the file.
	DirectoryID string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time in Unix nanoseconds.
	ModTime int64
}

// Discoverer provides methods for discovering segment files.
type Discoverer interface {
	// Discover scans configured directories and returns all segment files,
	// sorted by path.
	//
	// Missing base directories are logged and skipped.
	Discover() ([]SegmentFile, error)

	// DiscoverDir returns the segment files directly inside dir.
	//
	// Returns ErrDirectoryNotFound if dir does not exist.
	DiscoverDir(dir string) ([]SegmentFile, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	baseDirs []string
	logger   Logger
}

// New creates a new Discoverer instance.
//
// Parameters:
//   - baseDirs: Segment directories to scan
//   - logger: Logger instance for diagnostic messages
func New(baseDirs []string, logger Logger) Discoverer {
	return &discoverer{
		baseDirs: baseDirs,
		logger:   logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]SegmentFile, error) {
	var all []SegmentFile

	for _, baseDir := range d.baseDirs {
		expandedDir := ExpandHome(baseDir)

		if _, err := os.Stat(expandedDir); err != nil {
			if os.IsNotExist(err) {
				d.logger.Warn("segment directory not found, skipping", "path", expandedDir)
				continue
			}
			return nil, fmt.Errorf("failed to stat directory %s: %w", expandedDir, err)
		}

		files, err := d.scanBaseDirectory(expandedDir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", expandedDir, err)
		}

		all = append(all, files...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	d.logger.Info("discovery complete", "total_segments", len(all))
	return all, nil
}

// DiscoverDir implements Discoverer.DiscoverDir.
func (d *discoverer) DiscoverDir(dir string) ([]SegmentFile, error) {
	expanded := ExpandHome(dir)

	if _, err := os.Stat(expanded); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, expanded)
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", expanded, err)
	}

	return d.scanSegmentDirectory(expanded)
}

// scanBaseDirectory collects segment files in baseDir and in each of
// its immediate subdirectories.
func (d *discoverer) scanBaseDirectory(baseDir string) ([]SegmentFile, error) {
	files, err := d.scanSegmentDirectory(baseDir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		sub := filepath.Join(baseDir, entry.Name())
		subFiles, err := d.scanSegmentDirectory(sub)
		if err != nil {
			d.logger.Warn("failed to scan segment directory",
				"path", sub,
				"error", err)
			continue
		}

		files = append(files, subFiles...)
	}

	return files, nil
}

// scanSegmentDirectory lists the *.json files directly inside dir.
func (d *discoverer) scanSegmentDirectory(dir string) ([]SegmentFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	directoryID := filepath.Base(dir)
	files := make([]SegmentFile, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !IsSegmentFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("failed to get file info",
				"path", path,
				"error", err)
			continue
		}

		files = append(files, SegmentFile{
			Path:        path,
			DirectoryID: directoryID,
			Size:        info.Size(),
			ModTime:     info.ModTime().UnixNano(),
		})
	}

	d.logger.Debug("scanned segment directory",
		"path", dir,
		"segments_found", len(files))

	return files, nil
}

// IsSegmentFile reports whether name looks like a segment file.
// Hidden files and editor temporaries are excluded.
func IsSegmentFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), SegmentExt)
}

// ExpandHome expands ~ in file paths to the user's home directory.
func ExpandHome(path string) string {
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
