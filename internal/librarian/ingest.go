package librarian

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/respparse"
	"github.com/starford/othala/internal/vault"
)

const ingestInstructions = `INGEST MODE. This is a raw capture note.

Task:
1. Analyze the note's intent (Meeting, Idea, Task, Reference).
2. Enrich the frontmatter: descriptive title, type, status, tags from the Tag Glossary, and code if applicable.
3. Choose the correct folder under the Areas/Projects structure.
4. Output the organized note using the %%FILE%% schema; split into multiple %%FILE%% blocks when the note covers unrelated topics.`

// Ingest turns every capture note into a review-queue proposal: the
// model classifies and reorganizes the note, the transcript is staged
// for human review, and the capture note is deleted. A failed model
// call skips the note and the batch continues. Returns the number of
// notes processed.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	captures, err := s.store.List(s.opts.CaptureDir)
	if err != nil {
		return 0, fmt.Errorf("librarian: list capture dir: %w", err)
	}
	if len(captures) == 0 {
		s.logger.Info("librarian: capture folder is empty")
		return 0, nil
	}
	s.logger.Info("librarian: ingesting captures", slog.Int("notes", len(captures)))

	vaultContext, skeleton, err := s.FullContext()
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, meta := range captures {
		if err := s.ingestOne(ctx, meta.Path, vaultContext, skeleton); err != nil {
			s.logger.Error("librarian: ingest failed",
				slog.String("path", meta.Path), slog.String("error", err.Error()))
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) ingestOne(ctx context.Context, capturePath, vaultContext, skeleton string) error {
	raw, err := s.store.Read(capturePath)
	if err != nil {
		return fmt.Errorf("read capture: %w", err)
	}

	transcript, err := s.model.GenerateProposal(ctx, ingestInstructions, string(raw), vaultContext, skeleton)
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	stem := s.proposalStem(transcript, capturePath)
	fm := models.Frontmatter{
		Type: "file_change_proposal",
		Extra: map[string]any{
			"librarian": "review",
			"source":    capturePath,
		},
	}
	content, err := composeProposal(fm, ingestInstructions, string(raw), transcript)
	if err != nil {
		return err
	}

	target, err := s.store.WriteUnique(path.Join(s.opts.ReviewDir, stem+".md"), content)
	if err != nil {
		return fmt.Errorf("write proposal: %w", err)
	}
	s.logger.Info("librarian: proposal staged", slog.String("proposal", target))

	if err := s.store.Delete(capturePath); err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	return nil
}

// proposalStem names the proposal after the first file the model wants
// to create, falling back to the capture note's own stem.
func (s *Service) proposalStem(transcript, capturePath string) string {
	parsed := respparse.Parse(transcript)
	if len(parsed.Files) > 0 {
		return sanitizeFilename(vault.Stem(parsed.Files[0].Path))
	}
	return sanitizeFilename(vault.Stem(capturePath))
}

// composeProposal builds the proposal note body: the instructions and
// original content are embedded alongside the raw transcript so a
// human reviewer sees exactly what the model was asked and produced.
func composeProposal(fm models.Frontmatter, instructions, original, transcript string) ([]byte, error) {
	body := fmt.Sprintf("%%%%INSTRUCTIONS%%%%\n%s\n---\n%%%%ORIGINAL%%%%\n%s\n---\n%s\n",
		instructions, original, transcript)
	content, err := parser.Compose(fm, body)
	if err != nil {
		return nil, fmt.Errorf("compose proposal: %w", err)
	}
	return content, nil
}
