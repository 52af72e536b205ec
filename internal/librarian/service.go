// Package librarian orchestrates the two vault pipelines: ingesting
// capture notes into review-queue proposals, and generating fix
// proposals for notes flagged by the quality scanner.
package librarian

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/othala/internal/indexer"
	"github.com/starford/othala/internal/llm"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/state"
	"github.com/starford/othala/internal/storage"
)

// Options configures the vault layout and batch limits.
type Options struct {
	CaptureDir             string
	ReviewDir              string
	SystemInstructionsPath string
	TagGlossaryPath        string
	RegistryOutputPath     string
	ScanRoots              []string // roots audited by the scanner (projects + areas)
	CooldownDays           int
	FreshnessWindow        time.Duration
	TopN                   int
}

// DefaultOptions mirrors the vault conventions the automation was
// built around.
func DefaultOptions() Options {
	return Options{
		CaptureDir:             "00. Inbox/0. Capture",
		ReviewDir:              "00. Inbox/1. Review Queue",
		SystemInstructionsPath: "30. Areas/4. Personal Management/Obsidian/Obsidian System Instructions.md",
		TagGlossaryPath:        "00. Inbox/00. Tag Glossary.md",
		RegistryOutputPath:     "99. System/Manual/02. Code Registry.md",
		ScanRoots:              []string{"20. Projects", "30. Areas"},
		CooldownDays:           state.DefaultCooldownDays,
		FreshnessWindow:        time.Hour,
		TopN:                   20,
	}
}

// Service wires the core components into runnable pipelines.
type Service struct {
	store    storage.Provider
	model    llm.Client
	indexer  *indexer.Indexer
	registry *registry.Builder
	tracker  *state.Tracker
	opts     Options
	logger   *slog.Logger
}

// NewService creates the orchestrator. The model client is injected so
// tests can run the full pipelines against the in-memory fake.
func NewService(
	store storage.Provider,
	model llm.Client,
	ix *indexer.Indexer,
	reg *registry.Builder,
	tracker *state.Tracker,
	opts Options,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		model:    model,
		indexer:  ix,
		registry: reg,
		tracker:  tracker,
		opts:     opts,
		logger:   logger,
	}
}

// FullContext aggregates the model-prompt context: the system
// instruction note, the tag glossary, and the code registry table.
// Missing context files degrade to empty sections with a warning; the
// skeleton is returned separately since the model call takes it as its
// own argument.
func (s *Service) FullContext() (vaultContext, skeleton string, err error) {
	instructions := s.readContextFile(s.opts.SystemInstructionsPath)
	glossary := s.readContextFile(s.opts.TagGlossaryPath)

	entries, err := s.registry.Build()
	if err != nil {
		return "", "", fmt.Errorf("librarian: build registry: %w", err)
	}
	table := registry.Table(entries)

	skeleton, err = s.indexer.BuildSkeleton()
	if err != nil {
		return "", "", fmt.Errorf("librarian: build skeleton: %w", err)
	}

	vaultContext = fmt.Sprintf(`=== SYSTEM INSTRUCTIONS ===
%s

=== TAG GLOSSARY ===
%s

=== CODE REGISTRY ===
%s`, instructions, glossary, table)
	return vaultContext, skeleton, nil
}

// Registry rebuilds and returns the current code-registry entries.
func (s *Service) Registry() ([]models.RegistryEntry, error) {
	return s.registry.Build()
}

// Skeleton rebuilds and returns the link-target catalogue.
func (s *Service) Skeleton() (string, error) {
	return s.indexer.BuildSkeleton()
}

func (s *Service) readContextFile(rel string) string {
	data, err := s.store.Read(rel)
	if err != nil {
		s.logger.Warn("librarian: context file missing", slog.String("path", rel))
		return ""
	}
	return string(data)
}
