// Package vault holds shared conventions for walking the note tree:
// the directory denylist and the note loading helper used by the
// indexer, registry builder, and scanner.
package vault

import (
	"path"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

// excludedDirs are never scanned: the staging/review area, the system
// area, and tool-internal directories.
var excludedDirs = map[string]struct{}{
	"00. Inbox": {},
	"99. System": {},
	".git":      {},
	".obsidian": {},
	".trash":    {},
}

// IsExcluded reports whether any segment of the vault-relative path is
// on the denylist.
func IsExcluded(rel string) bool {
	for _, part := range strings.Split(path.Clean(rel), "/") {
		if _, ok := excludedDirs[part]; ok {
			return true
		}
	}
	return false
}

// Stem returns the filename without directory or extension.
func Stem(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// LoadNote reads and parses a note. Callers that walk the tree treat a
// non-nil error as "skip this file".
func LoadNote(store storage.Provider, rel string) (*models.Note, error) {
	data, err := store.Read(rel)
	if err != nil {
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	return &models.Note{Path: rel, Frontmatter: res.Frontmatter, Body: res.Body}, nil
}

// WalkNotes lists every markdown file under the given roots, skipping
// denylisted directories, and calls fn for each surviving path. Roots
// that do not exist contribute nothing.
func WalkNotes(store storage.Provider, roots []string, fn func(meta models.NoteMetadata)) error {
	for _, root := range roots {
		metas, err := store.List(root)
		if err != nil {
			return err
		}
		for _, m := range metas {
			if IsExcluded(m.Path) {
				continue
			}
			fn(m)
		}
	}
	return nil
}
