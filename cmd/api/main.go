package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/staynest/staynest-backend/api/routes"
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
	paymentsSvc, err := payments.NewService(paymentsRepo, dbClient, payoutSvc, cfg.Payments.ExpiryWindow)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	reconciler, err := buildReconciler(cfg, logg, dbClient, redisClient, reservationsSvc, paymentsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			reservationsSvc,
			paymentsSvc,
			payoutSvc,
			reconciler,
		),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

// buildReconciler assembles the same job set the cron worker runs, wired for
// synchronous execution behind the admin reconcile endpoint.
func buildReconciler(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	reservationsSvc reservations.Service,
	paymentsRepo payments.Repository,
) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockTTL)
	if err != nil {
		return nil, err
	}

	expiryJob, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
		Logger:      logg,
		DB:          dbClient,
		StaleReader: paymentsRepo,
		Canceller:   reservationsSvc,
		Interval:    cfg.Cron.PaymentExpiryInterval,
	})
	if err != nil {
		return nil, err
	}

	rolloverJob, err := cron.NewReservationRolloverJob(cron.RolloverJobParams{
		Logger:   logg,
		Reader:   reservations.NewRepository(dbClient.DB()),
		Service:  reservationsSvc,
		Interval: cfg.Cron.ReservationRolloverInterval,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiryJob, rolloverJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
}
