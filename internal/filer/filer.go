// Package filer materializes approved proposals from the review queue
// into concrete vault files.
package filer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/othala/internal/respparse"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

// Trigger is the frontmatter sentinel: a proposal is executed only
// when its metadata carries `librarian: file`.
const (
	TriggerKey   = "librarian"
	TriggerValue = "file"

	// TargetFileKey marks a maintenance-fix proposal and references the
	// file being corrected. Its presence switches the filer to replace
	// mode for that proposal.
	TargetFileKey = "target-file"
)

// Filer scans the review queue and executes approved proposals.
type Filer struct {
	store     storage.Provider
	reviewDir string
	logger    *slog.Logger
}

// New creates a Filer over the given review-queue directory (relative
// to the vault root).
func New(store storage.Provider, reviewDir string, logger *slog.Logger) *Filer {
	return &Filer{store: store, reviewDir: reviewDir, logger: logger}
}

// FileApproved processes every proposal in the review queue whose
// frontmatter carries the trigger. Returns the total number of files
// written across the whole batch, which is what the commit message at
// the orchestration layer reports (not the proposal count). A proposal
// is deleted only after at least one of its files was written; failed
// proposals are kept for human inspection and never abort the batch.
func (f *Filer) FileApproved() (int, error) {
	proposals, err := f.store.List(f.reviewDir)
	if err != nil {
		return 0, fmt.Errorf("filer: list review queue: %w", err)
	}
	if len(proposals) == 0 {
		return 0, nil
	}

	f.logger.Info("filer: scanning review queue", slog.Int("proposals", len(proposals)))

	total := 0
	for _, meta := range proposals {
		n, err := f.executeProposal(meta.Path)
		if err != nil {
			f.logger.Error("filer: proposal failed",
				slog.String("proposal", meta.Path), slog.String("error", err.Error()))
			continue
		}
		total += n
	}
	return total, nil
}

// executeProposal materializes a single proposal and returns the
// number of files it wrote. Proposals without the trigger count zero.
func (f *Filer) executeProposal(propPath string) (int, error) {
	note, err := vault.LoadNote(f.store, propPath)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	if note.Frontmatter.ExtraString(TriggerKey) != TriggerValue {
		return 0, nil
	}

	f.logger.Info("filer: executing proposal", slog.String("proposal", propPath))

	parsed := respparse.Parse(note.Body)
	if len(parsed.Files) == 0 {
		f.logger.Warn("filer: proposal has no file blocks, keeping",
			slog.String("proposal", propPath))
		return 0, nil
	}

	_, isMaintenanceFix := note.Frontmatter.Extra[TargetFileKey]
	originalTarget := note.Frontmatter.ExtraString(TargetFileKey)

	written := 0
	for _, block := range parsed.Files {
		// Hard security boundary: the model must not escape the vault.
		if strings.Contains(block.Path, "..") || strings.HasPrefix(block.Path, "/") {
			f.logger.Warn("filer: unsafe path skipped", slog.String("path", block.Path))
			continue
		}

		if isMaintenanceFix {
			if err := f.replaceFile(originalTarget, block); err != nil {
				f.logger.Warn("filer: replace failed",
					slog.String("path", block.Path), slog.String("error", err.Error()))
				continue
			}
			f.logger.Info("filer: updated", slog.String("path", block.Path))
		} else {
			target, err := f.store.WriteUnique(block.Path, []byte(block.Content))
			if err != nil {
				f.logger.Warn("filer: write failed",
					slog.String("path", block.Path), slog.String("error", err.Error()))
				continue
			}
			f.logger.Info("filer: created", slog.String("path", target))
		}
		written++
	}

	if written == 0 {
		f.logger.Warn("filer: no files written, keeping proposal",
			slog.String("proposal", propPath))
		return 0, nil
	}

	if err := f.store.Delete(propPath); err != nil {
		f.logger.Warn("filer: delete proposal failed",
			slog.String("proposal", propPath), slog.String("error", err.Error()))
	} else {
		f.logger.Info("filer: deleted proposal", slog.String("proposal", propPath))
	}
	return written, nil
}

// replaceFile is the maintenance-fix path: the proposal corrects a
// known file, so the original and any pre-existing target are removed
// and the new content is written directly. The overwrite is
// intentional; these are rename semantics, not a new artifact.
func (f *Filer) replaceFile(originalTarget string, block respparse.FileBlock) error {
	if originalTarget != "" && originalTarget != block.Path && f.store.Exists(originalTarget) {
		if err := f.store.Delete(originalTarget); err != nil {
			return fmt.Errorf("delete original: %w", err)
		}
		f.logger.Info("filer: deleted original", slog.String("path", originalTarget))
	}
	if f.store.Exists(block.Path) {
		if err := f.store.Delete(block.Path); err != nil {
			return fmt.Errorf("delete target: %w", err)
		}
	}
	return f.store.Write(block.Path, []byte(block.Content))
}
