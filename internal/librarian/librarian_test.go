package librarian

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/indexer"
	"github.com/starford/othala/internal/llm"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/state"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/vault"
)

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

func testOptions() Options {
	return Options{
		CaptureDir:             "00. Inbox/0. Capture",
		ReviewDir:              "00. Inbox/1. Review Queue",
		SystemInstructionsPath: "99. System/instructions.md",
		TagGlossaryPath:        "99. System/glossary.md",
		RegistryOutputPath:     "99. System/registry.md",
		ScanRoots:              []string{"20. Projects"},
		CooldownDays:           state.DefaultCooldownDays,
		FreshnessWindow:        0,
		TopN:                   20,
	}
}

func newTestService(t *testing.T, s *storage.FS, model llm.Client, opts Options) *Service {
	t.Helper()
	logger := testLogger()
	ix := indexer.New(s, []string{""}, logger)
	reg := registry.New(s, opts.ScanRoots, logger)
	tracker := state.NewTracker(s, "99. System/maintenance_history.json", logger)
	return NewService(s, model, ix, reg, tracker, opts, logger)
}

func TestIngest(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("00. Inbox/0. Capture/raw idea.md", []byte("remember to plan the pepsi launch\n"))
	_ = s.Write("99. System/instructions.md", []byte("house rules\n"))

	fake := &llm.Fake{Response: "%%EXPLANATION%%\nfiled it\n%%FILE: 20. Projects/Pepsi/PEPS-Launch.md%%\norganized content\n"}
	svc := newTestService(t, s, fake, testOptions())

	n, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
	if s.Exists("00. Inbox/0. Capture/raw idea.md") {
		t.Error("capture note should be deleted after staging")
	}

	// The proposal is named after the first file the model proposed.
	prop := "00. Inbox/1. Review Queue/PEPS-Launch.md"
	note, err := vault.LoadNote(s, prop)
	if err != nil {
		t.Fatalf("proposal missing: %v", err)
	}
	if note.Frontmatter.Type != "file_change_proposal" {
		t.Errorf("type = %q", note.Frontmatter.Type)
	}
	if got := note.Frontmatter.ExtraString("librarian"); got != "review" {
		t.Errorf("librarian = %q, proposals start unapproved", got)
	}
	if got := note.Frontmatter.ExtraString("source"); got != "00. Inbox/0. Capture/raw idea.md" {
		t.Errorf("source = %q", got)
	}
	if !strings.Contains(note.Body, "%%INSTRUCTIONS%%") ||
		!strings.Contains(note.Body, "%%ORIGINAL%%") ||
		!strings.Contains(note.Body, "organized content") {
		t.Errorf("body missing sections:\n%s", note.Body)
	}

	if len(fake.Calls) != 1 {
		t.Fatalf("model calls = %d, want 1", len(fake.Calls))
	}
	if !strings.Contains(fake.Calls[0].VaultContext, "house rules") {
		t.Error("system instructions not passed to model")
	}
}

func TestIngestEmptyCaptureDir(t *testing.T) {
	s := tempVault(t)
	fake := &llm.Fake{}
	svc := newTestService(t, s, fake, testOptions())

	n, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 0 || len(fake.Calls) != 0 {
		t.Errorf("processed = %d, calls = %d", n, len(fake.Calls))
	}
}

func TestIngestModelFailureKeepsCapture(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("00. Inbox/0. Capture/x.md", []byte("content\n"))

	fake := &llm.Fake{Err: errors.New("quota exceeded")}
	svc := newTestService(t, s, fake, testOptions())

	n, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest should not abort the batch: %v", err)
	}
	if n != 0 {
		t.Errorf("processed = %d, want 0", n)
	}
	if !s.Exists("00. Inbox/0. Capture/x.md") {
		t.Error("capture must survive a failed model call")
	}
}

func TestMaintainProposesAndRecords(t *testing.T) {
	s := tempVault(t)
	// Missing aliases/tags and a generic filename: score 30.
	_ = s.Write("20. Projects/meeting.md", []byte("unstructured notes\n"))

	fake := &llm.Fake{Response: "%%FILE: 20. Projects/PEPS-Weekly Sync.md%%\n---\ntitle: Weekly Sync\ntags: [work]\n---\nfixed\n"}
	svc := newTestService(t, s, fake, testOptions())

	report, err := svc.Maintain(context.Background())
	if err != nil {
		t.Fatalf("Maintain: %v", err)
	}
	if report.Scanned != 1 || report.Proposed != 1 {
		t.Errorf("report = %+v", report)
	}

	prop := "00. Inbox/1. Review Queue/Refactor - meeting.md"
	note, err := vault.LoadNote(s, prop)
	if err != nil {
		t.Fatalf("proposal missing: %v", err)
	}
	if got := note.Frontmatter.ExtraString("target-file"); got != "20. Projects/meeting.md" {
		t.Errorf("target-file = %q", got)
	}
	if got := note.Frontmatter.ExtraString("reason"); !strings.Contains(got, "Generic Filename") {
		t.Errorf("reason = %q", got)
	}

	if !s.Exists("99. System/maintenance_history.json") {
		t.Error("history document not saved")
	}
}

func TestMaintainCooldownSuppressesRepeat(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/meeting.md", []byte("unstructured notes\n"))

	fake := &llm.Fake{Response: "%%FILE: out.md%%\nfixed\n"}
	svc := newTestService(t, s, fake, testOptions())

	if _, err := svc.Maintain(context.Background()); err != nil {
		t.Fatalf("first Maintain: %v", err)
	}

	// A fresh service reloads the saved history; the candidate must be
	// suppressed by the cooldown window.
	svc2 := newTestService(t, s, fake, testOptions())
	report, err := svc2.Maintain(context.Background())
	if err != nil {
		t.Fatalf("second Maintain: %v", err)
	}
	if report.InCooldown != 1 || report.Proposed != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestMaintainFreshnessSkip(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/meeting.md", []byte("just written\n"))

	opts := testOptions()
	opts.FreshnessWindow = time.Hour

	fake := &llm.Fake{}
	svc := newTestService(t, s, fake, opts)

	report, err := svc.Maintain(context.Background())
	if err != nil {
		t.Fatalf("Maintain: %v", err)
	}
	if report.Fresh != 1 || report.Proposed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(fake.Calls) != 0 {
		t.Error("freshly edited note must not reach the model")
	}
}

func TestMaintainTopNCap(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/meeting.md", []byte("a\n"))
	_ = s.Write("20. Projects/note.md", []byte("b\n"))
	_ = s.Write("20. Projects/call.md", []byte("c\n"))

	opts := testOptions()
	opts.TopN = 2

	fake := &llm.Fake{Response: "%%FILE: out.md%%\nfixed\n"}
	svc := newTestService(t, s, fake, opts)

	report, err := svc.Maintain(context.Background())
	if err != nil {
		t.Fatalf("Maintain: %v", err)
	}
	if report.Scanned != 3 || report.Proposed != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestMaintainModelFailureNotRecorded(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/meeting.md", []byte("x\n"))

	fake := &llm.Fake{Err: errors.New("boom")}
	svc := newTestService(t, s, fake, testOptions())

	report, err := svc.Maintain(context.Background())
	if err != nil {
		t.Fatalf("Maintain: %v", err)
	}
	if report.Proposed != 0 {
		t.Errorf("report = %+v", report)
	}

	// A failed proposal must not enter cooldown: the next run retries.
	svc2 := newTestService(t, s, &llm.Fake{Response: "%%FILE: out.md%%\nfixed\n"}, testOptions())
	report2, err := svc2.Maintain(context.Background())
	if err != nil {
		t.Fatalf("retry Maintain: %v", err)
	}
	if report2.InCooldown != 0 || report2.Proposed != 1 {
		t.Errorf("retry report = %+v", report2)
	}
}

func TestAuditSortsWorstFirst(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/Pepsi/PEPS-Index.md", []byte("---\ncode: PEPS\ntags: [p]\n---\n"))
	_ = s.Write("20. Projects/Pepsi/untitled.md", []byte("everything wrong\n"))
	_ = s.Write("20. Projects/stray.md", []byte("missing metadata only\n"))

	svc := newTestService(t, s, &llm.Fake{}, testOptions())
	results, err := svc.Audit()
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Path != "20. Projects/Pepsi/untitled.md" || results[0].Score != 80 {
		t.Errorf("worst = %+v", results[0])
	}
	if results[1].Path != "20. Projects/stray.md" || results[1].Score != 10 {
		t.Errorf("second = %+v", results[1])
	}
}

func TestUpdateRegistry(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("20. Projects/Pepsi/index.md", []byte("---\ncode: PEPS\ntype: project\n---\n"))

	svc := newTestService(t, s, &llm.Fake{}, testOptions())
	if err := svc.UpdateRegistry(); err != nil {
		t.Fatalf("UpdateRegistry: %v", err)
	}

	note, err := vault.LoadNote(s, "99. System/registry.md")
	if err != nil {
		t.Fatalf("registry note missing: %v", err)
	}
	if note.Frontmatter.Title != "Code Registry" {
		t.Errorf("title = %q", note.Frontmatter.Title)
	}
	if !strings.Contains(note.Body, "| PEPS | index | project | 20. Projects/Pepsi |") {
		t.Errorf("table row missing:\n%s", note.Body)
	}
}

func TestFullContextMissingFilesDegrade(t *testing.T) {
	s := tempVault(t)
	svc := newTestService(t, s, &llm.Fake{}, testOptions())

	vaultContext, skeleton, err := svc.FullContext()
	if err != nil {
		t.Fatalf("FullContext: %v", err)
	}
	if !strings.Contains(vaultContext, "=== SYSTEM INSTRUCTIONS ===") ||
		!strings.Contains(vaultContext, "=== TAG GLOSSARY ===") ||
		!strings.Contains(vaultContext, "=== CODE REGISTRY ===") {
		t.Errorf("context sections missing:\n%s", vaultContext)
	}
	if skeleton != "" {
		t.Errorf("skeleton = %q", skeleton)
	}
}
