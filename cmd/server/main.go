package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registrar/internal/catalog"
	catalogmetrics "registrar/internal/catalog/metrics"
	"registrar/internal/platform/config"
	"registrar/internal/platform/health"
	"registrar/internal/platform/httpserver"
	"registrar/internal/platform/logger"
	"registrar/internal/platform/tracing"
	"registrar/internal/registration/handler"
	regmetrics "registrar/internal/registration/metrics"
	"registrar/internal/registration/service"
	"registrar/internal/staffauth"
	"registrar/pkg/platform/middleware/metadata"
	"registrar/pkg/platform/middleware/request"
	"registrar/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing registrar",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"ledger_backend", cfg.LedgerBackend,
		"catalog_source", cfg.Catalog.Source,
	)

	tracer, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		log.Error("failed to configure tracing", "error", err)
		os.Exit(1)
	}

	backing, err := connectInfra(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect infrastructure", "error", err)
		os.Exit(1)
	}
	defer backing.Close(log)

	src, err := buildCatalogSource(cfg, backing)
	if err != nil {
		log.Error("failed to build catalog source", "error", err)
		os.Exit(1)
	}
	courses := catalog.New(src,
		catalog.WithLogger(log),
		catalog.WithMetrics(catalogmetrics.New()),
	)
	if err := courses.Refresh(ctx); err != nil {
		log.Error("initial catalog load failed", "error", err, "source", src.Name())
		os.Exit(1)
	}

	l, err := buildLedger(cfg, backing, log)
	if err != nil {
		log.Error("failed to build ledger", "error", err)
		os.Exit(1)
	}

	m := regmetrics.New()
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithStatusCache(service.NewStatusCache(cfg.Registration.StatusCacheTTL, m)),
		service.WithResolverOptions(
			service.WithRetryBudget(cfg.Registration.RetryBudget),
			service.WithBackoff(cfg.Registration.BaseBackoff, cfg.Registration.MaxBackoff),
			service.WithStoreTimeout(cfg.Registration.StoreTimeout),
		),
	}
	if publisher := buildPublisher(cfg, backing, log); publisher != nil {
		opts = append(opts, service.WithPublisher(publisher))
	}
	engine, err := service.New(courses, l, opts...)
	if err != nil {
		log.Error("failed to build registration engine", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("ledger", l.Health)
	healthHandler.RegisterCheck("catalog", courses.Health)
	backing.RegisterChecks(healthHandler)

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}
	tokens := staffauth.NewAdapter(staffauth.NewTokenService(cfg.Staff.SigningKey, cfg.Staff.Issuer))

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(metadata.ClientMetadata(proxies))
	r.Use(requesttime.Middleware)
	r.Use(request.LatencyMiddleware(request.NewMetrics()))
	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	auditLog := buildAuditLog(backing, log)
	handler.New(engine, courses, tokens, log,
		handler.WithSubmitMiddleware(buildSubmitLimiter(ctx, cfg, backing, log)),
		handler.WithAuditLog(auditLog),
	).Register(r)

	worker := catalog.NewRefreshWorker(courses,
		catalog.WithRefreshInterval(cfg.Catalog.RefreshInterval),
		catalog.WithWorkerLogger(log),
	)
	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("catalog refresh worker stopped", "error", err)
		}
	}()
	if cfg.Catalog.Source == config.CatalogYAML && cfg.Catalog.Watch {
		watcher := catalog.NewFileWatcher(courses, cfg.Catalog.File,
			catalog.WithDebounce(cfg.Catalog.WatchDebounce),
			catalog.WithWatchLogger(log),
		)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("course file watcher stopped", "error", err)
			}
		}()
	}
	go backing.RecordPoolStats(ctx, 15*time.Second)
	stopAudit := startAuditTrail(auditLog, log)

	srv := httpserver.New(cfg.Addr, r)
	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	stopAudit(shutdownCtx)
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn("trace flush failed", "error", err)
	}
	backing.Flush(shutdownCtx, log)

	log.Info("server stopped")
}
