package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadrelay/leadrelay-backend/internal/cron"
	"github.com/leadrelay/leadrelay-backend/internal/destinations"
	"github.com/leadrelay/leadrelay-backend/internal/leads"
	"github.com/leadrelay/leadrelay-backend/pkg/config"
	"github.com/leadrelay/leadrelay-backend/pkg/db"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
	"github.com/leadrelay/leadrelay-backend/pkg/metrics"
	"github.com/leadrelay/leadrelay-backend/pkg/migrate"
	"github.com/leadrelay/leadrelay-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, cron.WorkerLockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	leadRetention, err := cron.NewLeadRetentionJob(cron.LeadRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: leads.NewRepository(dbClient.DB()),
		Retention:  retentionDays(cfg.Retention.LeadWindow),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lead retention job", err)
		os.Exit(1)
	}

	attemptRetention, err := cron.NewAttemptRetentionJob(cron.AttemptRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: destinations.NewRepository(dbClient.DB()),
		Retention:  retentionDays(cfg.Retention.AttemptWindow),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create attempt retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(leadRetention, attemptRetention)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Retention.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func retentionDays(window time.Duration) int {
	days := int(window / (24 * time.Hour))
	if days <= 0 {
		days = 0
	}
	return days
}
