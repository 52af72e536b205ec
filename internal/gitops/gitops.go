// Package gitops commits and pushes vault changes after a batch. This
// is a side effect of the orchestration layer: failures are logged by
// the caller and never abort a run.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git runs the git binary against the vault working tree.
type Git struct {
	root  string
	name  string
	email string
}

// New creates a Git helper for the repository at root. The author
// identity is applied per command so the automation never touches the
// user's global git config.
func New(root, authorName, authorEmail string) *Git {
	if authorName == "" {
		authorName = "Othala Librarian"
	}
	if authorEmail == "" {
		authorEmail = "librarian@automation.local"
	}
	return &Git{root: root, name: authorName, email: authorEmail}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	base := []string{
		"-C", g.root,
		"-c", "user.name=" + g.name,
		"-c", "user.email=" + g.email,
	}
	cmd := exec.CommandContext(ctx, "git", append(base, args...)...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("gitops: git %s: %w: %s", args[0], err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// HasChanges reports whether the working tree is dirty, untracked
// files included.
func (g *Git) HasChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// CommitAndPush stages everything, commits with the automation author,
// and pushes to origin. A clean tree is a no-op.
func (g *Git) CommitAndPush(ctx context.Context, message string) error {
	dirty, err := g.HasChanges(ctx)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return err
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return err
	}
	if _, err := g.run(ctx, "push", "origin"); err != nil {
		return err
	}
	return nil
}
