package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/staynest/staynest-backend/internal/accounts"
	"github.com/staynest/staynest-backend/internal/cron"
	"github.com/staynest/staynest-backend/internal/payments"
	"github.com/staynest/staynest-backend/internal/payout"
	"github.com/staynest/staynest-backend/internal/reservations"
	"github.com/staynest/staynest-backend/pkg/config"
	"github.com/staynest/staynest-backend/pkg/db"
	"github.com/staynest/staynest-backend/pkg/logger"
	"github.com/staynest/staynest-backend/pkg/metrics"
	"github.com/staynest/staynest-backend/pkg/migrate"
	"github.com/staynest/staynest-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	reservationsRepo := reservations.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	payoutRepo := payout.NewRepository(dbClient.DB())
	accountsRepo := accounts.NewRepository(dbClient.DB())

	payoutSvc, err := payout.NewService(payoutRepo, accountsRepo, dbClient, int64(cfg.Payout.HostShareBP))
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}
	reservationsSvc, err := reservations.NewService(reservationsRepo, dbClient, payoutSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservations service", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:      logg,
		DB:          dbClient,
		StaleReader: paymentsRepo,
		Canceller:   reservationsSvc,
		Interval:    cfg.Cron.PaymentExpiryInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment expiry job", err)
		os.Exit(1)
	}

	rolloverJob, err := cron.NewReservationRolloverJob(cron.RolloverJobParams{
		Logger:   logg,
		Reader:   reservationsRepo,
		Service:  reservationsSvc,
		Interval: cfg.Cron.ReservationRolloverInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create rollover job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, rolloverJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
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
