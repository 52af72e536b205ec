package librarian

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/scanner"
	"github.com/starford/othala/internal/vault"
)

// MaintenanceReport summarizes one maintenance run.
type MaintenanceReport struct {
	Scanned    int // candidates with a positive score
	InCooldown int // suppressed by the cooldown window
	Fresh      int // skipped because recently edited by a human
	Proposed   int // fix proposals staged for review
}

// Audit builds the registry, runs the quality scanner over the managed
// roots, and returns candidates sorted by score descending.
func (s *Service) Audit() ([]models.ValidationResult, error) {
	entries, err := s.registry.Build()
	if err != nil {
		return nil, fmt.Errorf("librarian: build registry: %w", err)
	}
	sc := scanner.New(s.store, s.opts.ScanRoots, registry.FolderCodes(entries), s.logger)
	results, err := sc.Scan()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Maintain runs the night-watchman pipeline: scan, filter by cooldown
// and edit freshness, cap to the top-N worst offenders, and generate a
// fix proposal for each survivor. Only successfully proposed paths are
// recorded in the cooldown history. A failed model call skips its
// candidate without aborting the batch.
func (s *Service) Maintain(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	candidates, err := s.Audit()
	if err != nil {
		return nil, err
	}
	report.Scanned = len(candidates)
	if len(candidates) == 0 {
		s.logger.Info("librarian: vault is clean")
		return report, nil
	}

	filtered := s.tracker.Filter(candidates, s.opts.CooldownDays)
	report.InCooldown = len(candidates) - len(filtered)

	// Freshness check: a file modified moments ago is likely under a
	// human's hands; skip it rather than clobber an edit in progress.
	// Advisory only, races remain possible.
	var stale []models.ValidationResult
	for _, c := range filtered {
		mod, err := s.store.ModTime(c.Path)
		if err == nil && time.Since(mod) < s.opts.FreshnessWindow {
			report.Fresh++
			s.logger.Debug("librarian: recently edited, skipping", slog.String("path", c.Path))
			continue
		}
		stale = append(stale, c)
	}

	if s.opts.TopN > 0 && len(stale) > s.opts.TopN {
		stale = stale[:s.opts.TopN]
	}
	if len(stale) == 0 {
		return report, nil
	}

	vaultContext, skeleton, err := s.FullContext()
	if err != nil {
		return nil, err
	}

	for _, c := range stale {
		if err := s.proposeFix(ctx, c, vaultContext, skeleton); err != nil {
			s.logger.Error("librarian: fix proposal failed",
				slog.String("path", c.Path), slog.String("error", err.Error()))
			continue
		}
		s.tracker.Record(c.Path, c.Score)
		report.Proposed++
	}

	if err := s.tracker.Save(); err != nil {
		s.logger.Warn("librarian: save history failed", slog.String("error", err.Error()))
	}
	return report, nil
}

// maintenanceInstructions spells out the detected defects so the model
// fixes what the scanner flagged instead of rewriting the note.
func maintenanceInstructions(reasons []string) string {
	return fmt.Sprintf(`MAINTENANCE MODE. This note has failed quality checks.
Detected Issues: %s.

Task:
1. Fix the Frontmatter (add missing aliases, tags, or other required metadata).
2. Rename the file if it violates Project Code conventions (filename should start with the expected project code).
3. Do NOT rewrite the body text unless essential for formatting or fixing critical errors.
4. Preserve all existing content and structure.
5. Output the result using the %%FILE%% schema with the corrected path if renaming is needed.`,
		strings.Join(reasons, ", "))
}

func (s *Service) proposeFix(ctx context.Context, c models.ValidationResult, vaultContext, skeleton string) error {
	raw, err := s.store.Read(c.Path)
	if err != nil {
		return fmt.Errorf("read candidate: %w", err)
	}

	instructions := maintenanceInstructions(c.Reasons)
	transcript, err := s.model.GenerateProposal(ctx, instructions, string(raw), vaultContext, skeleton)
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	fm := models.Frontmatter{
		Type: "file_change_proposal",
		Extra: map[string]any{
			"target-file": c.Path,
			"score":       c.Score,
			"reason":      strings.Join(c.Reasons, ", "),
			"librarian":   "review",
		},
	}
	content, err := composeProposal(fm, instructions, string(raw), transcript)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("Refactor - %s.md", sanitizeFilename(vault.Stem(c.Path)))
	target, err := s.store.WriteUnique(path.Join(s.opts.ReviewDir, name), content)
	if err != nil {
		return fmt.Errorf("write proposal: %w", err)
	}
	s.logger.Info("librarian: fix proposal staged",
		slog.String("path", c.Path), slog.String("proposal", target), slog.Int("score", c.Score))
	return nil
}

// UpdateRegistry regenerates the code-registry note so humans (and the
// model context) see the current folder → code table.
func (s *Service) UpdateRegistry() error {
	entries, err := s.registry.Build()
	if err != nil {
		return fmt.Errorf("librarian: build registry: %w", err)
	}
	fm := models.Frontmatter{Title: "Code Registry", Type: "system"}
	content, err := parser.Compose(fm, registry.Table(entries)+"\n")
	if err != nil {
		return fmt.Errorf("librarian: compose registry note: %w", err)
	}
	if err := s.store.Write(s.opts.RegistryOutputPath, content); err != nil {
		return fmt.Errorf("librarian: write registry note: %w", err)
	}
	s.logger.Info("librarian: registry updated", slog.String("path", s.opts.RegistryOutputPath))
	return nil
}
