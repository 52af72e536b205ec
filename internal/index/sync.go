package index

import (
	"log/slog"
	"time"

	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// Sync walks the vault and brings the catalogue up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the catalogue
//
// Denylisted directories (inbox, system area, tool internals) are never
// catalogued; entries under them left over from earlier runs are pruned
// like any other stale path.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	err = vault.WalkNotes(store, []string{""}, func(m models.NoteMetadata) {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			return
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			return
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	})
	if err != nil {
		return err
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile parses data and upserts it into the catalogue.
func indexFile(db *DB, path string, data []byte) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}

	title := res.Frontmatter.Title
	if title == "" {
		title = vault.Stem(path)
	}

	row := NoteRow{
		Path:      path,
		Title:     title,
		Code:      res.Frontmatter.Code,
		Checksum:  checksum.Sum(data),
		Tags:      res.Frontmatter.Tags,
		Aliases:   res.Frontmatter.Aliases,
		UpdatedAt: time.Now(),
	}
	return db.UpsertNote(row, res.Body)
}
