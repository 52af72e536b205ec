package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/librarian"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

// Service backs the read-only HTTP surface: catalogue queries go to the
// sqlite index, note reads go to the vault, and the curation views
// (audit, registry, skeleton) go through the librarian.
type Service struct {
	store storage.Provider
	db    *index.DB
	lib   *librarian.Service
}

// NewService creates an API service.
func NewService(store storage.Provider, db *index.DB, lib *librarian.Service) *Service {
	return &Service{store: store, db: db, lib: lib}
}

// NoteDetail is the full note payload returned by GetNote.
type NoteDetail struct {
	Path    string   `json:"path"`
	Title   string   `json:"title"`
	Code    string   `json:"code,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
	Content string   `json:"content"`
}

// ListNotes returns a catalogue page plus the total note count.
func (s *Service) ListNotes(_ context.Context, limit, offset int) ([]index.NoteRow, int, error) {
	return s.db.ListNotes(limit, offset)
}

// GetNote reads a note from the vault and returns it with its parsed
// frontmatter fields.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("api: parse note: %w", err)
	}
	return &NoteDetail{
		Path:    path,
		Title:   res.Frontmatter.Title,
		Code:    res.Frontmatter.Code,
		Tags:    res.Frontmatter.Tags,
		Aliases: res.Frontmatter.Aliases,
		Content: string(data),
	}, nil
}

// Search runs a full-text query against the catalogue.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Audit returns the quality-scan results, worst first.
func (s *Service) Audit(_ context.Context) ([]models.ValidationResult, error) {
	return s.lib.Audit()
}

// Registry returns the current code-registry entries.
func (s *Service) Registry(_ context.Context) ([]models.RegistryEntry, error) {
	return s.lib.Registry()
}

// Skeleton returns the link-target catalogue handed to the model.
func (s *Service) Skeleton(_ context.Context) (string, error) {
	return s.lib.Skeleton()
}
