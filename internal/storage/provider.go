// Package storage defines the vault file-system abstraction.
package storage

import (
	"time"

	"github.com/starford/othala/internal/models"
)

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns metadata for every .md file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, overwriting.
	Write(path string, content []byte) error
	// WriteUnique writes content to path, or to the first free numbered
	// variant (stem-1.md, stem-2.md, ...) when path is taken. Returns
	// the path actually written.
	WriteUnique(path string, content []byte) (string, error)
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether a file exists at path.
	Exists(path string) bool
	// ModTime returns the last-modified time of the file at path.
	ModTime(path string) (time.Time, error)
}
