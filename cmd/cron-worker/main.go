package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodbowl/foodbowl-backend/internal/cron"
	"github.com/foodbowl/foodbowl-backend/internal/payments"
	"github.com/foodbowl/foodbowl-backend/pkg/config"
	"github.com/foodbowl/foodbowl-backend/pkg/db"
	"github.com/foodbowl/foodbowl-backend/pkg/instance"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/metrics"
	"github.com/foodbowl/foodbowl-backend/pkg/migrate"
	"github.com/foodbowl/foodbowl-backend/pkg/outbox"
	"github.com/foodbowl/foodbowl-backend/pkg/razorpay"
	"github.com/foodbowl/foodbowl-backend/pkg/redis"
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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	registry, err := cron.NewRegistry()
	if err != nil {
		logg.Error(ctx, "failed to build cron registry", err)
		os.Exit(1)
	}

	janitor, err := cron.NewOutboxJanitorJob(cron.OutboxJanitorJobParams{
		Logger:      logg,
		Outbox:      outboxRepo,
		Keep:        cfg.Outbox.Keep,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(ctx, "failed to build outbox janitor job", err)
		os.Exit(1)
	}
	if err := registry.Register(janitor); err != nil {
		logg.Error(ctx, "failed to register job", err)
		os.Exit(1)
	}

	if cfg.Razorpay.Enabled() {
		gateway, err := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret,
			razorpay.WithBaseURL(cfg.Razorpay.BaseURL),
			razorpay.WithTimeout(cfg.Razorpay.Timeout),
		)
		if err != nil {
			logg.Error(ctx, "failed to build razorpay client", err)
			os.Exit(1)
		}
		paymentsSvc, err := payments.NewService(
			payments.NewRepository(dbClient.DB()),
			dbClient,
			outbox.NewService(outboxRepo, logg),
			gateway,
			payments.Config{KeySecret: cfg.Razorpay.KeySecret, Currency: cfg.Razorpay.Currency, Timeout: cfg.Razorpay.Timeout},
			logg,
		)
		if err != nil {
			logg.Error(ctx, "failed to build payments service", err)
			os.Exit(1)
		}
		expiry, err := cron.NewPaymentExpiryJob(cron.PaymentExpiryJobParams{
			Logger:   logg,
			Payments: paymentsSvc,
			TTL:      cfg.Payments.CreatedTTL,
		})
		if err != nil {
			logg.Error(ctx, "failed to build payment expiry job", err)
			os.Exit(1)
		}
		if err := registry.Register(expiry); err != nil {
			logg.Error(ctx, "failed to register job", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "razorpay credentials missing; payment expiry job disabled")
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
