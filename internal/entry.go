// Package internal wires configuration, storage and the rule store into the
// MCP, HTTP and command-line modes.
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

	"github.com/starford/rulekeeper/internal/api"
	"github.com/starford/rulekeeper/internal/journal"
	"github.com/starford/rulekeeper/internal/locate"
	"github.com/starford/rulekeeper/internal/mcpserver"
	"github.com/starford/rulekeeper/internal/rulestore"
	"github.com/starford/rulekeeper/internal/sse"
	"github.com/starford/rulekeeper/internal/storage"
	"github.com/starford/rulekeeper/internal/watch"
)

// Runtime is an opened rule store and its collaborators.
type Runtime struct {
	Store    *rulestore.Store
	Logger   *slog.Logger
	Resolver *locate.Resolver
	WorkDir  string

	journal *journal.DB
}

// Close releases the journal, if any.
func (r *Runtime) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Close()
}

// Documents returns the documents the runtime can touch from its working
// directory: the resolved one and the global one.
func (r *Runtime) Documents() []string {
	return []string{r.Store.Locate(locate.Scope{Dir: r.WorkDir}).Path, r.Resolver.GlobalPath}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stderr, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("working dir: %w", err)
		}
		app.workDir = wd
	}
	return app, nil
}

// Open builds the logger, resolver, journal and store. Callers must Close
// the runtime.
func Open(opts ...Option) (*Runtime, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return app.open()
}

func (a *application) open() (*Runtime, error) {
	cfg := a.config

	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	files := storage.NewFS()
	resolver, err := locate.NewResolver(cfg.Documents.Filename, cfg.Documents.GlobalPath, files.Exists)
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}

	storeOpts := []rulestore.Option{
		rulestore.WithHeader(cfg.Rules.SectionHeader),
		rulestore.WithTable(cfg.Rules.Table),
		rulestore.WithReviewThreshold(cfg.Rules.ReviewThresholdDays),
		rulestore.WithPruneEmptyCategories(cfg.Rules.PruneEmptyCategories),
		rulestore.WithLogger(logger),
	}

	rt := &Runtime{Logger: logger, Resolver: resolver, WorkDir: a.workDir}
	if cfg.Journal.Enabled() {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		rt.journal = db
		storeOpts = append(storeOpts, rulestore.WithJournal(db))
	}
	rt.Store = rulestore.New(files, resolver, storeOpts...)

	logger.Debug("Configuration loaded",
		slog.String("work_dir", a.workDir),
		slog.String("filename", resolver.Filename),
		slog.String("global_path", resolver.GlobalPath),
		slog.String("section_header", cfg.Rules.SectionHeader),
		slog.Bool("journal", cfg.Journal.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return rt, nil
}

// Serve runs the MCP server on stdin/stdout until ctx is cancelled, stdin is
// closed or a termination signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(rt.Store, rt.WorkDir, app.version, rt.Logger)
	rt.Logger.Info("MCP server starting", slog.String("work_dir", rt.WorkDir))
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	rt.Logger.Info("MCP server stopped")
	return nil
}

// Run starts the HTTP API with live change events.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := app.config
	logger := rt.Logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	h := api.NewHandler(rt.Store, broker, rt.WorkDir)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		docs := rt.Documents()
		if err := watch.Watch(gCtx, storage.NewFS(), docs, logger, broker.PublishDocumentChanged); err != nil {
			logger.Warn("watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
