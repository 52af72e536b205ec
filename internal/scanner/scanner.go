// Package scanner applies the quality rule set to every managed note
// and surfaces weighted defect scores.
package scanner

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// Rule weights. Rules are independent and additive; a note can trip
// all three.
const (
	scoreMissingMetadata = 10
	scoreCodeMismatch    = 50
	scoreGenericName     = 20
)

// genericStems are filename stems considered meaningless titles,
// matched case-insensitively.
var genericStems = map[string]struct{}{
	"untitled": {},
	"meeting":  {},
	"note":     {},
	"call":     {},
}

// Scanner evaluates the rule set against every markdown note under the
// managed roots.
type Scanner struct {
	store       storage.Provider
	roots       []string
	folderCodes map[string]string
	logger      *slog.Logger
}

// New creates a Scanner. folderCodes is the registry's folder → code
// lookup used by the code-mismatch rule.
func New(store storage.Provider, roots []string, folderCodes map[string]string, logger *slog.Logger) *Scanner {
	return &Scanner{store: store, roots: roots, folderCodes: folderCodes, logger: logger}
}

// Scan walks the managed roots and returns one result per note with a
// positive score. Notes that fail to parse contribute nothing.
func (s *Scanner) Scan() ([]models.ValidationResult, error) {
	var results []models.ValidationResult
	err := vault.WalkNotes(s.store, s.roots, func(meta models.NoteMetadata) {
		if r := s.Validate(meta.Path); r != nil {
			results = append(results, *r)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walk: %w", err)
	}
	s.logger.Info("scanner: scan complete", slog.Int("candidates", len(results)))
	return results, nil
}

// Validate scores a single note. Returns nil when the note is clean or
// cannot be parsed. Rules run in a fixed order so the reasons list is
// stable: frontmatter, code mismatch, filename.
func (s *Scanner) Validate(rel string) *models.ValidationResult {
	note, err := vault.LoadNote(s.store, rel)
	if err != nil {
		s.logger.Debug("scanner: skipping unreadable note",
			slog.String("path", rel), slog.String("error", err.Error()))
		return nil
	}

	score := 0
	var reasons []string

	// Rule 1: missing metadata.
	if len(note.Frontmatter.Aliases) == 0 && len(note.Frontmatter.Tags) == 0 {
		score += scoreMissingMetadata
		reasons = append(reasons, "Missing aliases/tags")
	}

	// Rule 2: code mismatch.
	stem := vault.Stem(rel)
	if expected := s.expectedCode(path.Dir(rel)); expected != "" && !strings.HasPrefix(stem, expected) {
		score += scoreCodeMismatch
		reasons = append(reasons, fmt.Sprintf("Missing Project Code: %s", expected))
	}

	// Rule 3: generic filename.
	if _, generic := genericStems[strings.ToLower(stem)]; generic {
		score += scoreGenericName
		reasons = append(reasons, "Generic Filename")
	}

	if score == 0 {
		return nil
	}
	return &models.ValidationResult{Path: rel, Score: score, Reasons: reasons}
}

// expectedCode walks upward through the folder's path segments and
// returns the code of the nearest ancestor present in the registry.
func (s *Scanner) expectedCode(folder string) string {
	if folder == "." || folder == "" {
		return ""
	}
	parts := strings.Split(folder, "/")
	for i := len(parts); i > 0; i-- {
		if code, ok := s.folderCodes[strings.Join(parts[:i], "/")]; ok {
			return code
		}
	}
	return ""
}
