// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/filer"
	"github.com/starford/othala/internal/gitops"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/indexer"
	"github.com/starford/othala/internal/librarian"
	"github.com/starford/othala/internal/llm"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/registry"
	"github.com/starford/othala/internal/state"
	"github.com/starford/othala/internal/storage"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	svc    *librarian.Service
	filer  *filer.Filer
}

// librarianOptions maps the YAML librarian section onto pipeline options.
func librarianOptions(cfg *Config) librarian.Options {
	return librarian.Options{
		CaptureDir:             cfg.Librarian.CaptureDir,
		ReviewDir:              cfg.Librarian.ReviewDir,
		SystemInstructionsPath: cfg.Librarian.SystemInstructionsPath,
		TagGlossaryPath:        cfg.Librarian.TagGlossaryPath,
		RegistryOutputPath:     cfg.Librarian.RegistryOutputPath,
		ScanRoots:              cfg.Librarian.ScanRoots,
		CooldownDays:           cfg.Librarian.CooldownDays,
		FreshnessWindow:        cfg.Librarian.FreshnessWindow,
		TopN:                   cfg.Librarian.TopN,
	}
}

// newRuntime validates options and wires the shared components. When
// needModel is false the language-model backend is replaced by a fake
// so commands that never call it do not require an API key.
func newRuntime(app *application, needModel bool) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	model := app.model
	if model == nil {
		if needModel {
			model, err = llm.NewGemini(cfg.LLM.Model, os.ExpandEnv(cfg.LLM.APIKey))
			if err != nil {
				return nil, fmt.Errorf("init model: %w", err)
			}
		} else {
			model = &llm.Fake{}
		}
	}

	opts := librarianOptions(cfg)
	// The skeleton covers the whole vault (minus the denylist); the
	// registry only needs the managed roots.
	ix := indexer.New(store, []string{""}, logger)
	reg := registry.New(store, opts.ScanRoots, logger)
	tracker := state.NewTracker(store, cfg.Librarian.HistoryPath, logger)
	svc := librarian.NewService(store, model, ix, reg, tracker, opts, logger)

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		svc:    svc,
		filer:  filer.New(store, opts.ReviewDir, logger),
	}, nil
}

// commit runs the optional git step. Failures are logged, never fatal:
// the vault changes on disk are the source of truth.
func (rt *runtime) commit(ctx context.Context, message string) {
	if !rt.cfg.Git.Enabled {
		return
	}
	g := gitops.New(rt.store.Root(), rt.cfg.Git.AuthorName, rt.cfg.Git.AuthorEmail)
	if err := g.CommitAndPush(ctx, message); err != nil {
		rt.logger.Warn("git commit failed", slog.String("error", err.Error()))
		return
	}
	rt.logger.Info("vault committed", slog.String("message", message))
}

// RunCron is the scheduled automation pass: file approved proposals,
// then turn new captures into proposals, then commit.
func RunCron(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, true)
	if err != nil {
		return err
	}

	filed, err := rt.filer.FileApproved()
	if err != nil {
		return err
	}
	ingested, err := rt.svc.Ingest(ctx)
	if err != nil {
		return err
	}

	rt.logger.Info("cron pass complete", slog.Int("filed", filed), slog.Int("ingested", ingested))
	if filed > 0 || ingested > 0 {
		rt.commit(ctx, fmt.Sprintf("Librarian: filed %d, ingested %d", filed, ingested))
	}
	return nil
}

// RunIngest turns capture notes into review-queue proposals.
func RunIngest(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, true)
	if err != nil {
		return err
	}
	n, err := rt.svc.Ingest(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("ingest complete", slog.Int("proposals", n))
	if n > 0 {
		rt.commit(ctx, fmt.Sprintf("Librarian: ingested %d capture(s)", n))
	}
	return nil
}

// RunMaintain refreshes the registry note and runs the quality-fix
// pipeline over the managed roots.
func RunMaintain(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, true)
	if err != nil {
		return err
	}
	if err := rt.svc.UpdateRegistry(); err != nil {
		rt.logger.Warn("registry update failed", slog.String("error", err.Error()))
	}
	report, err := rt.svc.Maintain(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("maintenance complete",
		slog.Int("scanned", report.Scanned),
		slog.Int("in_cooldown", report.InCooldown),
		slog.Int("fresh", report.Fresh),
		slog.Int("proposed", report.Proposed))
	if report.Proposed > 0 {
		rt.commit(ctx, fmt.Sprintf("Librarian: proposed %d fix(es)", report.Proposed))
	}
	return nil
}

// RunFile applies approved proposals from the review queue.
func RunFile(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, false)
	if err != nil {
		return err
	}
	n, err := rt.filer.FileApproved()
	if err != nil {
		return err
	}
	rt.logger.Info("filing complete", slog.Int("files_written", n))
	if n > 0 {
		rt.commit(ctx, fmt.Sprintf("Librarian: filed %d note(s)", n))
	}
	return nil
}

// RunAudit scans the managed roots and logs the flagged notes without
// calling the model or writing anything.
func RunAudit(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, false)
	if err != nil {
		return err
	}
	results, err := rt.svc.Audit()
	if err != nil {
		return err
	}
	for _, r := range results {
		rt.logger.Info("flagged",
			slog.String("path", r.Path),
			slog.Int("score", r.Score),
			slog.Any("reasons", r.Reasons))
	}
	rt.logger.Info("audit complete", slog.Int("flagged", len(results)))
	return nil
}

// RunUpdateRegistry regenerates the code-registry note.
func RunUpdateRegistry(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, false)
	if err != nil {
		return err
	}
	if err := rt.svc.UpdateRegistry(); err != nil {
		return err
	}
	rt.commit(ctx, "Librarian: registry updated")
	return nil
}

// RunMCP starts the Model Context Protocol server on stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, false)
	if err != nil {
		return err
	}

	db, err := index.Open(rt.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, rt.store, rt.logger); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.store, db, rt.svc).ServeStdio()
}

// Run starts the long-running server: HTTP API plus the vault watcher
// that keeps the catalogue current.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	rt, err := newRuntime(app, false)
	if err != nil {
		return err
	}
	cfg := rt.cfg
	logger := rt.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, rt.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// Build API service and router.
	apiSvc := api.NewService(rt.store, db, rt.svc)
	apiRouter := api.NewRouter(apiSvc, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher to keep the catalogue current.
	g.Go(func() error {
		return index.Watch(gCtx, db, rt.store, rt.store.Root(), logger, nil)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
