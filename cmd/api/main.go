package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadrelay/leadrelay-backend/api/routes"
	"github.com/leadrelay/leadrelay-backend/internal/delivery"
	"github.com/leadrelay/leadrelay-backend/internal/destinations"
	"github.com/leadrelay/leadrelay-backend/internal/ingest"
	"github.com/leadrelay/leadrelay-backend/internal/leads"
	"github.com/leadrelay/leadrelay-backend/internal/platform"
	"github.com/leadrelay/leadrelay-backend/pkg/config"
	"github.com/leadrelay/leadrelay-backend/pkg/db"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/metrics"
	"github.com/leadrelay/leadrelay-backend/pkg/migrate"
	"github.com/leadrelay/leadrelay-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deliveryMetrics := metrics.NewDeliveryMetrics(prometheus.DefaultRegisterer)

	executor := delivery.NewExecutor(delivery.ExecutorParams{
		UserAgent:        cfg.Delivery.UserAgent,
		MaxResponseBytes: cfg.Delivery.MaxResponseBytes,
	})

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		Logger:            logg,
		Repository:        delivery.NewRepository(dbClient.DB()),
		Executor:          executor,
		Metrics:           deliveryMetrics,
		DefaultRetryCount: cfg.Delivery.DefaultRetryCount,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	graphClient, err := platform.NewClient(
		platform.WithBaseURL(cfg.Platform.GraphBaseURL),
		platform.WithTimeout(cfg.Platform.HTTPTimeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create graph client", err)
		os.Exit(1)
	}

	ingestService, err := ingest.NewService(ingest.ServiceParams{
		Logger:     logg,
		Repository: ingest.NewRepository(dbClient.DB()),
		Graph:      graphClient,
		Dispatcher: deliveryService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ingest service", err)
		os.Exit(1)
	}

	leadsService, err := leads.NewService(leads.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create leads service", err)
		os.Exit(1)
	}

	destinationsService, err := destinations.NewService(destinations.ServiceParams{
		Logger:     logg,
		Repository: destinations.NewRepository(dbClient.DB()),
		Executor:   executor,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create destinations service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, prometheus.DefaultGatherer, routes.Services{
			Ingest:       ingestService,
			Leads:        leadsService,
			Destinations: destinationsService,
		}),
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
