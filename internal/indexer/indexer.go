// Package indexer builds the vault skeleton: a flat catalogue of link
// targets handed to the model so generated deep links resolve.
package indexer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// Indexer walks the configured scan roots and renders one descriptor
// line per discoverable note.
type Indexer struct {
	store  storage.Provider
	roots  []string
	logger *slog.Logger
}

// New creates an Indexer over the given scan roots (typically areas,
// projects, and resources).
func New(store storage.Provider, roots []string, logger *slog.Logger) *Indexer {
	return &Indexer{store: store, roots: roots, logger: logger}
}

// BuildSkeleton scans the vault and returns the link-target catalogue,
// one entry per line. The line format is a contract with the model
// prompt:
//
//	- [[Title]] (relative/path.md) [Aliases: a, b]
//
// Title falls back to the filename stem when the frontmatter has none;
// the aliases suffix appears only when the note declares aliases.
// Files that fail to parse are skipped so one corrupt note cannot
// abort indexing.
func (ix *Indexer) BuildSkeleton() (string, error) {
	var lines []string
	err := vault.WalkNotes(ix.store, ix.roots, func(meta models.NoteMetadata) {
		note, err := vault.LoadNote(ix.store, meta.Path)
		if err != nil {
			ix.logger.Debug("indexer: skipping unreadable note",
				slog.String("path", meta.Path), slog.String("error", err.Error()))
			return
		}
		title := note.Frontmatter.Title
		if title == "" {
			title = vault.Stem(meta.Path)
		}
		entry := fmt.Sprintf("- [[%s]] (%s)", title, meta.Path)
		if len(note.Frontmatter.Aliases) > 0 {
			entry += fmt.Sprintf(" [Aliases: %s]", strings.Join(note.Frontmatter.Aliases, ", "))
		}
		lines = append(lines, entry)
	})
	if err != nil {
		return "", fmt.Errorf("indexer: walk: %w", err)
	}
	ix.logger.Info("indexer: skeleton built", slog.Int("notes", len(lines)))
	return strings.Join(lines, "\n"), nil
}
