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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notegraph/internal/api"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/graphservice"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/joplin"
	"github.com/starford/notegraph/internal/mcpserver"
	"github.com/starford/notegraph/internal/metrics"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/source"
	"github.com/starford/notegraph/internal/sse"
	"github.com/starford/notegraph/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// graphThrottle is the minimum gap between graph updates pushed over SSE.
const graphThrottle = 500 * time.Millisecond

// backend is the record source selected by the configuration. db and store
// are set only for the SQLite source.
type backend struct {
	src   source.Source
	db    *index.DB
	store *storage.FS
	ping  func(context.Context) error
	close func() error
}

func newLogger(app *application) *slog.Logger {
	return slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
}

func openBackend(cfg *Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Source.Kind {
	case SourceJoplin:
		client := joplin.NewClient(
			joplin.WithBaseURL(cfg.Joplin.URL),
			joplin.WithToken(cfg.Joplin.Token),
			joplin.WithRateLimit(cfg.Joplin.RateLimit),
			joplin.WithHTTPClient(&http.Client{Timeout: cfg.Joplin.Timeout}),
		)
		logger.Info("Using Joplin source", slog.String("url", cfg.Joplin.URL))
		return &backend{
			src:   client,
			ping:  client.Ping,
			close: func() error { return nil },
		}, nil

	default:
		if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create vault dir: %w", err)
		}
		store, err := storage.NewFS(cfg.Vault.Path)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		logger.Info("Using SQLite source",
			slog.String("vault_path", cfg.Vault.Path),
			slog.String("sqlite_path", cfg.SQLite.Path))
		return &backend{
			src:   db,
			db:    db,
			store: store,
			ping:  db.Ping,
			close: db.Close,
		}, nil
	}
}

// syncVault brings the index up to date with the vault. It is a no-op for
// sources without a vault.
func (b *backend) syncVault(ctx context.Context, logger *slog.Logger) error {
	if b.db == nil {
		return nil
	}
	res, err := index.Sync(ctx, b.db, b.store, logger)
	if err != nil {
		return fmt.Errorf("sync vault: %w", err)
	}
	logger.Info("Vault synced",
		slog.Int("folders", res.Folders),
		slog.Int("indexed", res.Indexed),
		slog.Int("skipped", res.Skipped),
		slog.Int("removed", res.Removed))

	st, err := b.db.Stats(ctx)
	if err != nil {
		logger.Warn("index stats failed", slog.String("error", err.Error()))
		return nil
	}
	metrics.IndexRows.WithLabelValues("notes").Set(float64(st.Notes))
	metrics.IndexRows.WithLabelValues("folders").Set(float64(st.Folders))
	metrics.IndexRows.WithLabelValues("tags").Set(float64(st.Tags))
	return nil
}

func newBuilder(cfg *Config, b *backend, logger *slog.Logger) *graph.Builder {
	return graph.NewBuilder(b.src,
		graph.WithLogger(logger),
		graph.WithConcurrency(cfg.Graph.Concurrency),
	)
}

// Run starts the HTTP server with the given options and blocks until ctx is
// cancelled or a termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Source.Kind),
		slog.String("log_level", cfg.App.LogLevel.String()))

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	// SSE broker.
	broker := sse.NewBroker(graphThrottle)
	defer broker.Close()

	graphs := graphservice.New(newBuilder(cfg, be, logger), cfg.Graph.Settings,
		graphservice.WithLogger(logger),
		graphservice.WithPublisher(func(reason string, snap *graphservice.Snapshot) {
			broker.PublishGraph(reason, snap)
		}),
	)
	notes := noteservice.NewService(be.src)

	apiRouter := api.NewRouter(graphs, notes, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := be.ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Initial graph. The vault sync holds refreshes back and publishes once
	// when it completes.
	if be.db != nil {
		graphs.BeginSync()
		g.Go(func() error {
			if err := be.syncVault(gCtx, logger); err != nil {
				logger.Warn("initial sync failed", slog.String("error", err.Error()))
			}
			if err := graphs.EndSync(gCtx); err != nil {
				logger.Warn("initial graph build failed", slog.String("error", err.Error()))
			}
			return nil
		})
	} else {
		g.Go(func() error {
			if _, err := graphs.Refresh(gCtx, graphservice.ReasonStartup); err != nil {
				logger.Warn("initial graph build failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Note changes are folded into one pending refresh; the watcher never
	// waits for a rebuild.
	changed := make(chan struct{}, 1)
	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-changed:
				if _, err := graphs.Refresh(gCtx, graphservice.ReasonNoteChange); err != nil {
					logger.Warn("graph refresh failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	// Start file watcher with SSE callback.
	if be.db != nil && cfg.Vault.Watch {
		g.Go(func() error {
			return index.Watch(gCtx, be.db, be.store, logger, func(ev index.Event) {
				broker.PublishNoteEvent(ev.Kind, ev.NoteID, ev.Path)
				select {
				case changed <- struct{}{}:
				default:
				}
			})
		})
	}

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
		defer signal.Stop(quit)

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

		// Stop the refresh loop and the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// BuildGraph syncs the vault (for the SQLite source) and builds a single
// graph for req.
func BuildGraph(ctx context.Context, req graph.Request, opts ...Option) (*graph.Graph, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(app)

	be, err := openBackend(app.config, logger)
	if err != nil {
		return nil, err
	}
	defer be.close()

	if err := be.syncVault(ctx, logger); err != nil {
		return nil, err
	}
	return newBuilder(app.config, be, logger).Build(ctx, req)
}

// SyncVault runs one vault sync pass and returns its summary.
func SyncVault(ctx context.Context, opts ...Option) (index.SyncResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return index.SyncResult{}, err
	}
	if app.config.Source.Kind != SourceSQLite {
		return index.SyncResult{}, fmt.Errorf("sync: source %q has no vault", app.config.Source.Kind)
	}
	logger := newLogger(app)

	be, err := openBackend(app.config, logger)
	if err != nil {
		return index.SyncResult{}, err
	}
	defer be.close()

	return index.Sync(ctx, be.db, be.store, logger)
}

// ServeMCP serves the graph tools over stdio until the client disconnects.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app)
	slog.SetDefault(logger)

	be, err := openBackend(app.config, logger)
	if err != nil {
		return err
	}
	defer be.close()

	if err := be.syncVault(ctx, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	graphs := graphservice.New(newBuilder(app.config, be, logger), app.config.Graph.Settings,
		graphservice.WithLogger(logger))
	srv := mcpserver.New(graphs, noteservice.NewService(be.src), app.version)

	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
