// Package app wires the configuration, record store, engine, services
// and HTTP surface into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"meterfill/internal/config"
	apierrors "meterfill/internal/errors"
	"meterfill/internal/gapfill"
	"meterfill/internal/infrastructure"
	"meterfill/internal/intensity"
	mw "meterfill/internal/middleware"
	"meterfill/internal/readings"
	"meterfill/internal/services"
	"meterfill/internal/store"
	transporthttp "meterfill/internal/transport/http"
	ws "meterfill/internal/websocket"
	"meterfill/pkg/contracts"
	"meterfill/pkg/contracts/domain"
)

// Application is the composed service with all its collaborators.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	recordStore *readings.Store
	gapfill     *services.GapFillService
	health      *services.HealthService
	hub         *ws.Hub
	otel        *infrastructure.OTelProviders
	runStore    *store.PostgresRunStore

	httpServer *http.Server
}

// New builds the application from configuration: logger, telemetry,
// intensity table, initial readings load, services and router.
func New(ctx context.Context, cfg config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("starting", "version", contracts.GetVersionString())

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	otelProviders, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    infrastructure.ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    cfg.Telemetry.Environment,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	var metrics *infrastructure.EngineMetrics
	if otelProviders.Meter != nil {
		metrics, err = infrastructure.CreateEngineMetrics(otelProviders.Meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
	}

	provider, err := intensityProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	recordStore := readings.NewStore()
	loader := services.SnapshotLoader(func(ctx context.Context) ([]domain.ConsumptionRecord, readings.LoadStats, error) {
		return readings.LoadDirectory(ctx, cfg.Paths.ReadingsDir, logger)
	})

	records, stats, err := readings.LoadDirectory(ctx, cfg.Paths.ReadingsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("load readings from %s: %w", cfg.Paths.ReadingsDir, err)
	}
	recordStore.Replace(readings.NewSnapshot(records))
	metrics.RecordLoad(ctx, stats.Records)

	hub := ws.NewHub(logger)

	var runStore *store.PostgresRunStore
	if cfg.Database.Enabled {
		runStore, err = store.Open(ctx, store.Options{
			URL:    cfg.Database.URL,
			Schema: cfg.Database.Schema,
			RunTag: cfg.Database.RunTag,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("run store connected", "url", store.Redacted(cfg.Database.URL))
	}

	gapfillService, err := services.NewGapFillService(services.GapFillServiceOptions{
		Engine:  gapfill.NewEngine(provider, logger),
		Store:   recordStore,
		Loader:  loader,
		Events:  hub,
		Runs:    runStoreOrNil(runStore),
		Metrics: metrics,
		Workers: cfg.Engine.BatchWorkers,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	app := &Application{
		cfg:         cfg,
		logger:      logger,
		recordStore: recordStore,
		gapfill:     gapfillService,
		health:      services.NewHealthService(recordStore, logger),
		hub:         hub,
		otel:        otelProviders,
		runStore:    runStore,
	}

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

// runStoreOrNil avoids handing the service a typed nil interface.
func runStoreOrNil(s *store.PostgresRunStore) services.RunStore {
	if s == nil {
		return nil
	}
	return s
}

// intensityProvider loads the configured intensity table, or a
// declining stand-in when none is configured.
func intensityProvider(cfg config.Config, logger *slog.Logger) (gapfill.IntensityProvider, error) {
	if cfg.Paths.IntensityFile == "" {
		logger.Info("no intensity factor table configured, third fallback rule will decline")
		return gapfill.NopProvider{}, nil
	}
	table, err := intensity.LoadTable(cfg.Paths.IntensityFile, logger)
	if err != nil {
		return nil, fmt.Errorf("load intensity table %s: %w", cfg.Paths.IntensityFile, err)
	}
	return table, nil
}

// router assembles the middleware chain and routes.
func (a *Application) router() chi.Router {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.RealIP)
	r.Use(mw.StructuredLogger(a.logger))
	r.Use(mw.Recoverer(a.logger))
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Compress(5))

	if a.cfg.Security.EnableCORS {
		r.Use(mw.CORS(mw.CORSConfig{
			AllowedOrigins: a.cfg.Security.AllowedOrigins,
			ExposedHeaders: []string{"X-Request-ID"},
			Logger:         a.logger,
		}))
	}
	if a.cfg.Security.RateLimit.Enabled {
		limiter := mw.NewRateLimiter(a.cfg.Security.RateLimit.RPS, a.cfg.Security.RateLimit.Burst, a.logger)
		r.Use(limiter.Handler)
	}
	r.Use(mw.Timeout(a.cfg.Server.RequestTimeout, a.logger))
	r.Use(mw.ContentTypeValidator)

	errorHandler := apierrors.NewErrorHandler(a.logger, false)
	validation := mw.NewValidationMiddleware(a.logger)

	gapfillHandler := transporthttp.NewGapFillHandler(a.gapfill, validation, errorHandler, a.logger)
	sitesHandler := transporthttp.NewSitesHandler(a.gapfill, errorHandler, a.logger)
	healthHandler := transporthttp.NewHealthHandler(a.health, a.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/gapfill/resolve", gapfillHandler.Resolve)
		r.Post("/gapfill/batch", gapfillHandler.Batch)

		r.Get("/sites", sitesHandler.List)
		r.Get("/sites/{siteID}/months", sitesHandler.Months)
		r.Post("/readings/reload", sitesHandler.Reload)

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/version", healthHandler.Version)
	})

	if a.otel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.otel.PrometheusHTTP)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  a.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: a.cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     a.checkWSOrigin,
	}
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(a.hub, upgrader, w, req)
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	return r
}

func (a *Application) checkWSOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.cfg.Security.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run starts the hub and HTTP server and blocks until the context is
// canceled or a shutdown signal arrives.
func (a *Application) Run(ctx context.Context) error {
	go a.hub.Run()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		a.logger.Info("context canceled, shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server, hub, telemetry and run store.
func (a *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}

	a.hub.Shutdown()

	if a.runStore != nil {
		if err := a.runStore.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("run store close: %w", err)
		}
	}
	if err := a.otel.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("telemetry shutdown: %w", err)
	}

	infrastructure.CloseLogFile()
	a.logger.Info("shutdown complete")
	return firstErr
}
