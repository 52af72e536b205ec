package filer

import (
	"io"
	"log/slog"
	"testing"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
	"github.com/starford/othala/internal/storage"
)

const reviewDir = "00. Inbox/1. Review Queue"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempVault(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func writeProposal(t *testing.T, s *storage.FS, name string, extra map[string]any, body string) string {
	t.Helper()
	content, err := parser.Compose(models.Frontmatter{Type: "file_change_proposal", Extra: extra}, body)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	path := reviewDir + "/" + name
	if err := s.Write(path, content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return path
}

func TestFileApprovedCreatesFiles(t *testing.T) {
	s := tempVault(t)
	prop := writeProposal(t, s, "plan.md",
		map[string]any{TriggerKey: TriggerValue},
		"%%FILE: 20. Projects/Pepsi/PEPS-Plan.md%%\nplan content\n%%FILE: 30. Areas/notes.md%%\nmore content\n")

	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	if got, _ := s.Read("20. Projects/Pepsi/PEPS-Plan.md"); string(got) != "plan content" {
		t.Errorf("file content = %q", got)
	}
	if s.Exists(prop) {
		t.Error("executed proposal should be deleted")
	}
}

func TestFileApprovedSkipsUntriggered(t *testing.T) {
	s := tempVault(t)
	prop := writeProposal(t, s, "pending.md",
		map[string]any{TriggerKey: "review"},
		"%%FILE: out.md%%\ncontent\n")

	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 0 {
		t.Errorf("written = %d, want 0", n)
	}
	if !s.Exists(prop) {
		t.Error("untriggered proposal must be kept")
	}
	if s.Exists("out.md") {
		t.Error("untriggered proposal must not write files")
	}
}

func TestFileApprovedCollisionGetsSuffix(t *testing.T) {
	s := tempVault(t)
	writeProposal(t, s, "p1.md",
		map[string]any{TriggerKey: TriggerValue},
		"%%FILE: target.md%%\nfirst\n")
	writeProposal(t, s, "p2.md",
		map[string]any{TriggerKey: TriggerValue},
		"%%FILE: target.md%%\nsecond\n")

	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	if !s.Exists("target.md") || !s.Exists("target-1.md") {
		t.Error("expected target.md and target-1.md")
	}
}

func TestFileApprovedReplaceMode(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/meeting.md", []byte("old content"))
	prop := writeProposal(t, s, "fix.md",
		map[string]any{TriggerKey: TriggerValue, TargetFileKey: "20. Projects/meeting.md"},
		"%%FILE: 20. Projects/PEPS-Weekly Sync.md%%\nfixed content\n")

	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 1 {
		t.Errorf("written = %d, want 1", n)
	}
	if s.Exists("20. Projects/meeting.md") {
		t.Error("original should be deleted in replace mode")
	}
	if got, _ := s.Read("20. Projects/PEPS-Weekly Sync.md"); string(got) != "fixed content" {
		t.Errorf("replacement content = %q", got)
	}
	if s.Exists(prop) {
		t.Error("executed proposal should be deleted")
	}
}

func TestFileApprovedReplaceModeSamePath(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/keep.md", []byte("old"))
	writeProposal(t, s, "fix.md",
		map[string]any{TriggerKey: TriggerValue, TargetFileKey: "20. Projects/keep.md"},
		"%%FILE: 20. Projects/keep.md%%\nnew\n")

	f := New(s, reviewDir, testLogger())
	if _, err := f.FileApproved(); err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if got, _ := s.Read("20. Projects/keep.md"); string(got) != "new" {
		t.Errorf("content = %q, want overwrite in place", got)
	}
}

func TestFileApprovedUnsafePathSkipped(t *testing.T) {
	s := tempVault(t)
	prop := writeProposal(t, s, "evil.md",
		map[string]any{TriggerKey: TriggerValue},
		"%%FILE: ../escape.md%%\npayload\n%%FILE: /etc/owned.md%%\npayload\n")

	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 0 {
		t.Errorf("written = %d, want 0", n)
	}
	if !s.Exists(prop) {
		t.Error("proposal with only unsafe paths must be kept")
	}
}

func TestFileApprovedNoBlocksKept(t *testing.T) {
	s := tempVault(t)
	prop := writeProposal(t, s, "chatty.md",
		map[string]any{TriggerKey: TriggerValue},
		"the model only produced commentary, no file blocks\n")

	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 0 {
		t.Errorf("written = %d, want 0", n)
	}
	if !s.Exists(prop) {
		t.Error("blockless proposal must be kept for inspection")
	}
}

func TestFileApprovedEmptyQueue(t *testing.T) {
	s := tempVault(t)
	f := New(s, reviewDir, testLogger())
	n, err := f.FileApproved()
	if err != nil {
		t.Fatalf("FileApproved: %v", err)
	}
	if n != 0 {
		t.Errorf("written = %d, want 0", n)
	}
}
