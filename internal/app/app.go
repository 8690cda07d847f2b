// Package app assembles the service: configuration, logging, telemetry,
// persistence, the bulk engine, and the HTTP server, with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"deskops/internal/bulk"
	"deskops/internal/config"
	"deskops/internal/export"
	"deskops/internal/infrastructure"
	"deskops/internal/items"
	custommw "deskops/internal/middleware"
	"deskops/internal/store"
	handlers "deskops/internal/transport/http"
	ws "deskops/internal/websocket"
)

// Version is stamped at build time via ldflags.
var Version = "dev"

// Application is the composed service.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server

	Engine *bulk.Engine
	Items  *items.Service
	Hub    *ws.Hub
	OTel   *infrastructure.OTelProviders
}

// NewApplication loads configuration and wires every component. The returned
// application is ready to Run.
func NewApplication(configFile string) (*Application, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := infrastructure.NewLogger(cfg.Logging)
	logger.Info("application_starting",
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ExportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	otelProviders, err := infrastructure.InitializeOTel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	telemetry, err := bulk.NewTelemetry(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine instruments: %w", err)
	}

	hub := ws.NewHub(logger)

	historyStore, err := store.NewFileStore(cfg.Paths.StoreFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	engine := bulk.NewEngine(logger, hub, bulk.TimerScheduler{}, historyStore, telemetry, bulk.EngineOptions{
		BatchSize:          cfg.Engine.BatchSize,
		InterBatchDelay:    cfg.Engine.InterBatchDelay,
		HistoryLimit:       cfg.Engine.HistoryLimit,
		UndoDepth:          cfg.Engine.UndoDepth,
		PersistedUndoLimit: cfg.Engine.PersistedUndoLimit,
	})

	itemService := items.NewService(logger)
	items.SeedDemo(itemService)

	exporter := export.NewWorkbookWriter(cfg.Paths.ExportDir, logger)
	handlerSet := items.NewHandlerSet(itemService, exporter)
	handlerSet.RegisterAll(engine)

	if err := engine.Restore(context.Background()); err != nil {
		logger.Warn("state_restore_failed", slog.String("error", err.Error()))
	}

	a := &Application{
		Config: cfg,
		Logger: logger,
		Engine: engine,
		Items:  itemService,
		Hub:    hub,
		OTel:   otelProviders,
	}
	a.Router = a.setupRouter()
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// setupRouter builds the middleware chain and mounts every handler.
func (a *Application) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(a.Logger))

	if a.Config.RateLimit.Enabled {
		limiter := custommw.NewRateLimiter(a.Config.RateLimit.RPS, a.Config.RateLimit.Burst, a.Logger)
		r.Use(limiter.Handler)
	}

	opsHandler := handlers.NewOperationsHandler(a.Engine, a.Logger)
	selHandler := handlers.NewSelectionHandler(a.Engine.Selection(), a.Items, a.Logger)
	itemsHandler := handlers.NewItemsHandler(a.Items, a.Logger)
	wsHandler := handlers.NewWebSocketHandler(a.Hub, a.Config.WebSocket, a.Logger)
	healthHandler := handlers.NewHealthHandler(a.Hub, Version)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)

		r.Route("/operations", func(r chi.Router) {
			r.Get("/", opsHandler.List)
			r.Post("/", opsHandler.Start)
			r.Get("/stats", opsHandler.Stats)
			r.Get("/actions", opsHandler.Actions)
			r.Post("/undo", opsHandler.Undo)
			r.Post("/redo", opsHandler.Redo)
			r.Get("/undo/history", opsHandler.UndoHistory)
			r.Get("/{id}", opsHandler.Get)
			r.Post("/{id}/cancel", opsHandler.Cancel)
		})

		r.Route("/selection/{itemType}", func(r chi.Router) {
			r.Get("/", selHandler.Get)
			r.Post("/select", selHandler.Select)
			r.Post("/deselect", selHandler.Deselect)
			r.Post("/toggle", selHandler.Toggle)
			r.Post("/all", selHandler.SelectAll)
			r.Delete("/", selHandler.Clear)
		})

		r.Route("/items/{itemType}", func(r chi.Router) {
			r.Get("/", itemsHandler.List)
			r.Get("/{id}", itemsHandler.Get)
		})
	})

	r.Get("/ws", wsHandler.Serve)
	r.Handle("/metrics", a.OTel.PrometheusHTTP)

	return r
}

// Run starts the hub and the HTTP server and blocks until ctx is cancelled
// or a termination signal arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("server_listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutdown_initiated")
		return a.shutdown()
	})

	err := g.Wait()
	a.Logger.Info("application_stopped")
	return err
}

// shutdown drains the server, stops the hub, and flushes telemetry within
// the configured timeout.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server_shutdown_failed", slog.String("error", err.Error()))
		if closeErr := a.Server.Close(); closeErr != nil {
			return fmt.Errorf("forced close failed: %w", closeErr)
		}
	}

	a.Hub.Stop()

	if err := a.OTel.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warn("otel_shutdown_failed", slog.String("error", err.Error()))
	}

	// Give in-flight operations a moment to persist before exit.
	time.Sleep(100 * time.Millisecond)
	return nil
}
