// Package storage lays out the local media tree and performs crash-safe file
// writes.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mediagrab/pkg/media"
)

// Manager handles filesystem output for downloaded media. Files are written
// under baseDir as {platform}/{username}/{postID}_{NN}.{ext}.
type Manager struct {
	baseDir string
}

// NewManager creates a storage manager rooted at baseDir, creating the
// directory if needed.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the output root.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// AccountDir returns the directory holding one account's media.
func (m *Manager) AccountDir(platform, username string) string {
	return filepath.Join(m.baseDir, sanitize(platform), sanitize(username))
}

// ItemPath returns the deterministic destination path for a media item.
// The same item always maps to the same path, which is what makes re-runs
// incremental.
func (m *Manager) ItemPath(item media.Item) string {
	filename := fmt.Sprintf("%s_%02d.%s", sanitize(item.PostID), item.Ordinal, item.Extension())
	return filepath.Join(m.baseDir, sanitize(item.Platform), sanitize(item.Username), filename)
}

// Exists reports whether a file is already present at path.
func (m *Manager) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes r to path via a temporary file and an atomic rename, creating
// parent directories as needed. A partially written temp file is removed on
// failure so it can never be mistaken for a completed download.
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write media data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return written, nil
}

// sanitize strips path separators from identifiers that come from the remote
// API before they are used as path components.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, string(os.PathSeparator), "_")
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
