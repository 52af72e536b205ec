// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Othala vault tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/librarian"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/storage"
)

// Server wraps the MCP server with Othala tools.
type Server struct {
	mcp   *server.MCPServer
	store storage.Provider
	db    *index.DB
	lib   *librarian.Service
}

// New creates a new MCP server with all Othala tools registered. The
// surface is read-only: agents inspect the vault, the curation
// pipelines stay the only writers.
func New(store storage.Provider, db *index.DB, lib *librarian.Service) *Server {
	s := &Server{store: store, db: db, lib: lib}

	s.mcp = server.NewMCPServer(
		"Othala",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("audit_vault",
		mcp.WithDescription("Run the note quality scanner over the managed folders and "+
			"return flagged notes with scores and reasons, worst first."),
	), s.auditVault)

	s.mcp.AddTool(mcp.NewTool("code_registry",
		mcp.WithDescription("Return the project-code registry as a markdown table "+
			"mapping vault folders to their short codes."),
	), s.codeRegistry)

	s.mcp.AddTool(mcp.NewTool("vault_skeleton",
		mcp.WithDescription("Return the vault skeleton: one line per note with its "+
			"title, path, and aliases, suitable as deep-link context."),
	), s.vaultSkeleton)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.db.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}

	metas, err := s.store.List(folder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var paths []string
	for _, m := range metas {
		paths = append(paths, m.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) auditVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.lib.Audit()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("vault is clean"), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) codeRegistry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.lib.Registry()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(registry.Table(entries)), nil
}

func (s *Server) vaultSkeleton(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	skeleton, err := s.lib.Skeleton()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if skeleton == "" {
		return mcp.NewToolResultText("vault is empty"), nil
	}
	return mcp.NewToolResultText(skeleton), nil
}
