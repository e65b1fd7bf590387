package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile exports st to path as summary.json.
//
// The document is written to a temporary file in the same directory
// and renamed into place, so readers never observe a partial file.
func WriteFile(st Store, path string) error {
	path = expandHome(path)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := st.ExportJSON(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set export permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}

	return nil
}
