// Package scratch manages the local staging areas used while a video is
// being processed: one directory for raw downloads and one for transcoded
// outputs. Files in either area belong to exactly one job at a time.
package scratch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Manager owns the raw and processed staging directories.
type Manager struct {
	rawDir       string
	processedDir string
}

// NewManager creates a Manager and ensures both staging directories exist,
// including parents. Pre-existing directories are not an error.
func NewManager(rawDir, processedDir string) (*Manager, error) {
	if rawDir == "" {
		rawDir = filepath.Join(os.TempDir(), "transcoder", "raw-videos")
	}
	if processedDir == "" {
		processedDir = filepath.Join(os.TempDir(), "transcoder", "processed-videos")
	}

	if err := os.MkdirAll(rawDir, 0750); err != nil {
		return nil, fmt.Errorf("create raw scratch directory: %w", err)
	}
	if err := os.MkdirAll(processedDir, 0750); err != nil {
		return nil, fmt.Errorf("create processed scratch directory: %w", err)
	}

	return &Manager{rawDir: rawDir, processedDir: processedDir}, nil
}

// RawDir returns the raw staging directory path.
func (m *Manager) RawDir() string {
	return m.rawDir
}

// ProcessedDir returns the processed staging directory path.
func (m *Manager) ProcessedDir() string {
	return m.processedDir
}

// RawPath returns the local raw-staging path for an object key. Only the
// base name of the key is used, so keys with prefixes cannot escape the
// staging directory, and distinct keys map to distinct paths.
func (m *Manager) RawPath(key string) string {
	return filepath.Join(m.rawDir, filepath.Base(key))
}

// ProcessedPath returns the local processed-staging path for an object key.
func (m *Manager) ProcessedPath(key string) string {
	return filepath.Join(m.processedDir, filepath.Base(key))
}

// Remove deletes the file at path. A file that is already absent is not an
// error; any other filesystem failure is surfaced to the caller.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove scratch file %s: %w", path, err)
	}
	return nil
}

// FileSize returns the size in bytes of the file at path.
func (m *Manager) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat scratch file %s: %w", path, err)
	}
	return info.Size(), nil
}
