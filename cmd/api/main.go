package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/coupontracker-backend/api/controllers"
	"github.com/angelmondragon/coupontracker-backend/api/middleware"
	"github.com/angelmondragon/coupontracker-backend/api/routes"
	"github.com/angelmondragon/coupontracker-backend/internal/auth"
	"github.com/angelmondragon/coupontracker-backend/internal/catalog"
	"github.com/angelmondragon/coupontracker-backend/internal/coupons"
	"github.com/angelmondragon/coupontracker-backend/internal/issuers"
	"github.com/angelmondragon/coupontracker-backend/pkg/config"
	"github.com/angelmondragon/coupontracker-backend/pkg/db"
	"github.com/angelmondragon/coupontracker-backend/pkg/logger"
	"github.com/angelmondragon/coupontracker-backend/pkg/metrics"
	"github.com/angelmondragon/coupontracker-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	catalogClient, err := db.New(ctx, db.CatalogOptions(cfg.CatalogDB), logg)
	if err != nil {
		logg.Error(ctx, "failed to connect to coupon catalog", err)
		os.Exit(1)
	}
	catalogRepo := catalog.NewRepository(catalogClient, catalog.Options{
		QueryTimeout: cfg.CatalogDB.QueryTimeout,
		Metrics:      metrics.NewCatalogMetrics(reg),
	})

	issuerStore := issuers.Open(ctx, cfg.IssuerDB, logg, metrics.NewIssuerStoreMetrics(reg))

	// Interface-typed holders stay untyped nil when redis is off.
	var (
		redisClient *redis.Client
		cache       coupons.LookupCache
		rateLimiter middleware.RateLimiterStore
		redisPinger controllers.Pinger
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Warn(logg.WithFields(ctx, map[string]any{"error": err.Error()}), "redis unavailable, continuing without cache and rate limits")
			redisClient = nil
		} else {
			cache = redisClient
			rateLimiter = redisClient
			redisPinger = redisClient
		}
	}

	couponService, err := coupons.NewService(coupons.ServiceParams{
		Catalog:  catalogRepo,
		Issuers:  issuerStore,
		Teams:    cfg.Teams,
		Cache:    cache,
		CacheTTL: cfg.Redis.LookupTTL,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create coupon service", err)
		os.Exit(1)
	}

	issuerService, err := issuers.NewService(issuerStore)
	if err != nil {
		logg.Error(ctx, "failed to create issuer service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Issuers:   issuerStore,
		Coupons:   couponService,
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(cfg, logg, routes.Deps{
		Ready: controllers.ReadyDeps{
			Catalog: catalogRepo,
			Issuers: issuerStore,
			Redis:   redisPinger,
		},
		Coupons:     couponService,
		Scratch:     coupons.NewScratchStore(),
		Issuers:     issuerService,
		Auth:        authService,
		RateLimiter: rateLimiter,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"issuer_backend": issuerStore.Kind(),
		"redis":          redisClient != nil,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, issuerStore.Close())
	closeErr = multierr.Append(closeErr, catalogClient.Close())
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if closeErr != nil {
		logg.Error(serverCtx, "error during shutdown", closeErr)
		exitCode = 1
	}
	logg.Info(serverCtx, "api server stopped")
	os.Exit(exitCode)
}
