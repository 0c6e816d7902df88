// Package project persists annotation documents as versioned JSON files.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"frame-marker/internal/annotation"
)

// FileVersion is the current document format version.
const FileVersion = 1

// Extension is the annotation document file extension.
const Extension = ".fmk"

// File is the JSON structure of a .fmk annotation document. Geometry is
// stored normalized, so a document round-trips across surface sizes.
type File struct {
	Version   int                     `json:"version"`
	MediaPath string                  `json:"media,omitempty"`
	Lines     []annotation.Line       `json:"lines,omitempty"`
	Angles    []annotation.Angle      `json:"angles,omitempty"`
	Texts     []annotation.Text       `json:"texts,omitempty"`
	Grid      annotation.GridSettings `json:"grid"`
	Hidden    bool                    `json:"hidden,omitempty"`
}

// FromSnapshot builds a File from a store snapshot. mediaPath is stored
// relative to the document location when possible.
func FromSnapshot(snap annotation.Snapshot, docPath, mediaPath string) File {
	f := File{
		Version: FileVersion,
		Lines:   snap.Lines,
		Angles:  snap.Angles,
		Texts:   snap.Texts,
		Grid:    snap.Grid,
		Hidden:  snap.Hidden,
	}
	if mediaPath != "" {
		if rel, err := filepath.Rel(filepath.Dir(docPath), mediaPath); err == nil {
			f.MediaPath = rel
		} else {
			f.MediaPath = mediaPath
		}
	}
	return f
}

// Snapshot converts the file contents back to a store snapshot.
func (f File) Snapshot() annotation.Snapshot {
	return annotation.Snapshot{
		Lines:  f.Lines,
		Angles: f.Angles,
		Texts:  f.Texts,
		Grid:   f.Grid,
		Hidden: f.Hidden,
	}
}

// ResolveMediaPath returns the absolute media path for a document loaded
// from docPath, or "" when the document names no media.
func (f File) ResolveMediaPath(docPath string) string {
	if f.MediaPath == "" {
		return ""
	}
	if filepath.IsAbs(f.MediaPath) {
		return f.MediaPath
	}
	return filepath.Join(filepath.Dir(docPath), f.MediaPath)
}

// Save writes the document to path as indented JSON.
func Save(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Load reads and validates the document at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read document: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse document: %w", err)
	}
	if f.Version > FileVersion {
		return File{}, fmt.Errorf("document version %d is newer than supported version %d", f.Version, FileVersion)
	}
	if f.Version < 1 {
		return File{}, fmt.Errorf("document has no valid version field")
	}
	return f, nil
}
