package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/indexer"
	"github.com/starford/othala/internal/librarian"
	"github.com/starford/othala/internal/llm"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/state"
	"github.com/starford/othala/internal/storage"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "othala-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := librarian.DefaultOptions()
	lib := librarian.NewService(store, &llm.Fake{},
		indexer.New(store, []string{""}, logger),
		registry.New(store, opts.ScanRoots, logger),
		state.NewTracker(store, "99. System/maintenance_history.json", logger),
		opts, logger)

	return New(store, db, lib), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "audit_vault":
		result, err = srv.auditVault(ctx, req)
	case "code_registry":
		result, err = srv.codeRegistry(ctx, req)
	case "vault_skeleton":
		result, err = srv.vaultSkeleton(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestReadNote(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("test.md", []byte("# Test\nHello"))

	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "test.md"})
	if text := resultText(r); text != "# Test\nHello" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestListNotes(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.md", []byte("a"))
	_ = store.Write("b.md", []byte("b"))

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "a.md") || !strings.Contains(text, "b.md") {
		t.Errorf("list = %q", text)
	}
}

func TestAuditVault(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("20. Projects/meeting.md", []byte("unstructured\n"))

	r := callTool(t, srv, "audit_vault", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "20. Projects/meeting.md") || !strings.Contains(text, "Generic Filename") {
		t.Errorf("audit = %q", text)
	}
}

func TestAuditVaultClean(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "audit_vault", map[string]interface{}{})
	if text := resultText(r); text != "vault is clean" {
		t.Errorf("audit = %q", text)
	}
}

func TestCodeRegistry(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("20. Projects/Pepsi/PEPS-Index.md", []byte("---\ncode: PEPS\ntype: project\n---\n"))

	r := callTool(t, srv, "code_registry", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "| PEPS | PEPS-Index | project | 20. Projects/Pepsi |") {
		t.Errorf("registry = %q", text)
	}
}

func TestVaultSkeleton(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("20. Projects/plan.md", []byte("---\ntitle: The Plan\n---\nbody\n"))

	r := callTool(t, srv, "vault_skeleton", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "- [[The Plan]] (20. Projects/plan.md)") {
		t.Errorf("skeleton = %q", text)
	}
}

func TestSearchNotes(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("s.md", []byte("needle in a haystack"))
	// The catalogue is synced out of band; do it directly here.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := index.Sync(srv.db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "needle"})
	if text := resultText(r); !strings.Contains(text, "s.md") {
		t.Errorf("search = %q", text)
	}
}
