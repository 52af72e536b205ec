// Package registry builds the project-code registry: the mapping from
// vault folders to the short codes their notes must carry.
package registry

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// Builder walks the managed roots (areas + projects) collecting notes
// that declare a non-empty code in their frontmatter.
type Builder struct {
	store  storage.Provider
	roots  []string
	logger *slog.Logger
}

// New creates a registry Builder over the given roots.
func New(store storage.Provider, roots []string, logger *slog.Logger) *Builder {
	return &Builder{store: store, roots: roots, logger: logger}
}

// Build returns one entry per note carrying a code. The registry is
// rebuilt in full on every call; there is no incremental update.
func (b *Builder) Build() ([]models.RegistryEntry, error) {
	var entries []models.RegistryEntry
	err := vault.WalkNotes(b.store, b.roots, func(meta models.NoteMetadata) {
		note, err := vault.LoadNote(b.store, meta.Path)
		if err != nil {
			return
		}
		code := strings.TrimSpace(note.Frontmatter.Code)
		if code == "" {
			return
		}
		entries = append(entries, models.RegistryEntry{
			Code:   code,
			Name:   vault.Stem(meta.Path),
			Type:   note.Frontmatter.Type,
			Folder: path.Dir(meta.Path),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("registry: walk: %w", err)
	}
	b.logger.Debug("registry: built", slog.Int("entries", len(entries)))
	return entries, nil
}

// FolderCodes collapses entries into a folder → code lookup. The key
// is the parent directory of the note declaring the code; duplicate
// folders keep the last entry seen (each folder is expected to declare
// at most one code).
func FolderCodes(entries []models.RegistryEntry) map[string]string {
	codes := make(map[string]string, len(entries))
	for _, e := range entries {
		codes[e.Folder] = e.Code
	}
	return codes
}

// Table renders the registry as a markdown table sorted by folder,
// used verbatim as model-prompt context.
func Table(entries []models.RegistryEntry) string {
	sorted := make([]models.RegistryEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Folder < sorted[j].Folder })

	lines := []string{
		"| Code | Name | Type | Folder |",
		"| :--- | :--- | :--- | :--- |",
	}
	for _, e := range sorted {
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s |", e.Code, e.Name, e.Type, e.Folder))
	}
	return strings.Join(lines, "\n")
}
