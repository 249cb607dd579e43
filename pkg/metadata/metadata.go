// Package metadata maintains a per-account manifest of downloaded media.
// The manifest is a JSON sidecar living next to the media files and is
// merged across runs, so it reflects everything ever downloaded for the
// account rather than just the last run.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mediagrab/internal/downloader"
)

// ManifestFilename is the sidecar file written into each account directory.
const ManifestFilename = ".manifest.json"

// Entry records one downloaded media file.
type Entry struct {
	PostID       string    `json:"post_id"`
	Ordinal      int       `json:"ordinal"`
	Type         string    `json:"type"`
	SourceURL    string    `json:"source_url"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Manifest is the full download record for one account.
type Manifest struct {
	Platform  string    `json:"platform"`
	Username  string    `json:"username"`
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []Entry   `json:"entries"`
}

// Load reads the manifest from an account directory. A missing file yields
// an empty manifest for the given platform and username.
func Load(dir, platform, username string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	if os.IsNotExist(err) {
		return &Manifest{Platform: platform, Username: username}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	m.Platform = platform
	m.Username = username
	return &m, nil
}

// Record merges successful download outcomes into the manifest. Entries are
// keyed by filename so re-downloads replace the old record instead of
// duplicating it. Skipped and failed outcomes are ignored.
func (m *Manifest) Record(outcomes []downloader.Outcome) {
	byName := make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		byName[e.Filename] = i
	}

	now := time.Now().UTC()
	for _, out := range outcomes {
		if out.Status != downloader.StatusSuccess {
			continue
		}
		entry := Entry{
			PostID:       out.Item.PostID,
			Ordinal:      out.Item.Ordinal,
			Type:         string(out.Item.Type),
			SourceURL:    out.Item.SourceURL,
			Filename:     filepath.Base(out.Path),
			Size:         out.Size,
			DownloadedAt: now,
		}
		if i, ok := byName[entry.Filename]; ok {
			m.Entries[i] = entry
		} else {
			byName[entry.Filename] = len(m.Entries)
			m.Entries = append(m.Entries, entry)
		}
	}
	m.UpdatedAt = now
}

// Save writes the manifest into the account directory via a temp file and
// rename, so a crash mid-write never leaves a truncated manifest.
func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create account directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFilename)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}

// Contains reports whether a file is already recorded in the manifest.
func (m *Manifest) Contains(filename string) bool {
	for _, e := range m.Entries {
		if e.Filename == filename {
			return true
		}
	}
	return false
}
