package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foodbowl/foodbowl-backend/api/controllers"
	deliverycontrollers "github.com/foodbowl/foodbowl-backend/api/controllers/delivery"
	ordercontrollers "github.com/foodbowl/foodbowl-backend/api/controllers/orders"
	paymentcontrollers "github.com/foodbowl/foodbowl-backend/api/controllers/payments"
	"github.com/foodbowl/foodbowl-backend/api/middleware"
	"github.com/foodbowl/foodbowl-backend/internal/delivery"
	"github.com/foodbowl/foodbowl-backend/internal/orders"
	"github.com/foodbowl/foodbowl-backend/internal/payments"
	"github.com/foodbowl/foodbowl-backend/pkg/config"
	"github.com/foodbowl/foodbowl-backend/pkg/enums"
	"github.com/foodbowl/foodbowl-backend/pkg/logger"
	"github.com/foodbowl/foodbowl-backend/pkg/metrics"
	"github.com/foodbowl/foodbowl-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface is wired from.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	Readiness   map[string]controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Orders      orders.Service
	Delivery    delivery.Service
	// Payments is nil when gateway credentials are not configured.
	Payments payments.Service
	Now      func() time.Time
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Idempotency, cfg.Redis.IdempotencyTTL, logg))

		owner := middleware.RequireRole(logg, enums.UserRoleOwner)
		r.With(middleware.RequireRole(logg, enums.UserRoleUser)).Post("/order", ordercontrollers.Place(p.Orders, logg))
		r.Get("/order/user", ordercontrollers.ListMine(p.Orders, logg))
		r.With(owner).Get("/order/owner", ordercontrollers.ListOwned(p.Orders, logg))
		r.With(owner).Put("/order/status", ordercontrollers.UpdateStatus(p.Orders, logg))
		r.Get("/order/{orderId}", ordercontrollers.Detail(p.Orders, logg))

		if p.Payments != nil {
			r.Route("/orders/payment", func(r chi.Router) {
				r.Post("/create", paymentcontrollers.CreateGatewayOrder(p.Payments, logg))
				r.Post("/verify", paymentcontrollers.Verify(p.Payments, logg))
			})
		}

		r.Route("/delivery", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleDeliveryBoy))
			r.Get("/available-orders", deliverycontrollers.Available(p.Delivery, logg))
			r.Post("/accept-order", deliverycontrollers.Accept(p.Delivery, logg))
			r.Post("/reject-order", deliverycontrollers.Reject(p.Delivery, logg))
			r.Get("/my-orders", deliverycontrollers.Mine(p.Delivery, logg))
			r.Post("/mark-delivered", deliverycontrollers.MarkDelivered(p.Delivery, logg))
			r.Get("/stats", deliverycontrollers.Stats(p.Delivery, p.Now, logg))
		})
	})

	return r
}
