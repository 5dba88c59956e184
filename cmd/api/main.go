package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/foodbowl/foodbowl-backend/api"
	"github.com/foodbowl/foodbowl-backend/api/controllers"
	"github.com/foodbowl/foodbowl-backend/api/routes"
	"github.com/foodbowl/foodbowl-backend/internal/catalog"
	"github.com/foodbowl/foodbowl-backend/internal/delivery"
	"github.com/foodbowl/foodbowl-backend/internal/ledger"
	"github.com/foodbowl/foodbowl-backend/internal/orders"
	"github.com/foodbowl/foodbowl-backend/internal/payments"
	"github.com/foodbowl/foodbowl-backend/internal/users"
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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	catalogRepo := catalog.NewRepository(gormDB)
	presenter := orders.NewPresenter(users.NewRepository(gormDB), catalogRepo)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}

	var (
		paymentsSvc payments.Service
		gateway     orders.GatewayOrderCreator
	)
	if cfg.Razorpay.Enabled() {
		client, err := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret,
			razorpay.WithBaseURL(cfg.Razorpay.BaseURL),
			razorpay.WithTimeout(cfg.Razorpay.Timeout),
		)
		if err != nil {
			logg.Error(ctx, "failed to create razorpay client", err)
			os.Exit(1)
		}
		paymentsSvc, err = payments.NewService(
			payments.NewRepository(gormDB),
			dbClient,
			outboxSvc,
			client,
			payments.Config{KeySecret: cfg.Razorpay.KeySecret, Currency: cfg.Razorpay.Currency, Timeout: cfg.Razorpay.Timeout},
			logg,
		)
		if err != nil {
			logg.Error(ctx, "failed to create payments service", err)
			os.Exit(1)
		}
		gateway = paymentsSvc
	} else {
		logg.Warn(ctx, "razorpay credentials missing; online payments disabled")
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(gormDB),
		dbClient,
		catalogRepo,
		presenter,
		ledgerSvc,
		outboxSvc,
		gateway,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	loc, err := cfg.Delivery.Location()
	if err != nil {
		logg.Error(ctx, "invalid delivery stats timezone", err)
		os.Exit(1)
	}
	deliverySvc, err := delivery.NewService(
		delivery.NewRepository(gormDB),
		dbClient,
		ledgerSvc,
		presenter,
		outboxSvc,
		metrics.NewDeliveryMetrics(prometheus.DefaultRegisterer),
		delivery.Config{
			EarningsPerDeliveryPaise: cfg.Delivery.EarningsPerDeliveryPaise,
			Location:                 loc,
			AcceptMaxRetries:         cfg.Delivery.AcceptMaxRetries,
			AcceptRetryBase:          cfg.Delivery.AcceptRetryBase,
		},
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create delivery service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config: cfg,
		Logger: logg,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Idempotency: redisClient,
		Gatherer:    prometheus.DefaultGatherer,
		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Orders:      ordersSvc,
		Delivery:    deliverySvc,
		Payments:    paymentsSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
