package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/devicetrade-backend/api/controllers"
	catalogcontrollers "github.com/angelmondragon/devicetrade-backend/api/controllers/catalog"
	ordercontrollers "github.com/angelmondragon/devicetrade-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/devicetrade-backend/api/controllers/payments"
	sellrequestcontrollers "github.com/angelmondragon/devicetrade-backend/api/controllers/sellrequests"
	"github.com/angelmondragon/devicetrade-backend/api/middleware"
	"github.com/angelmondragon/devicetrade-backend/internal/orders"
	"github.com/angelmondragon/devicetrade-backend/internal/sellrequests"
	"github.com/angelmondragon/devicetrade-backend/pkg/config"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/redis"
)

// Services groups the domain services mounted under /api/v1.
type Services struct {
	Catalog      catalogcontrollers.Service
	Orders       orders.Service
	Payments     paymentcontrollers.Confirmer
	SellRequests sellrequests.Service
}

// Stores is the redis surface used by idempotency, rate limiting and readiness.
type Stores interface {
	redis.IdempotencyStore
	redis.RateLimitStore
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient Stores,
	metricsHandler http.Handler,
	svc Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	orderPolicy := middleware.NewRateLimitPolicy(
		"order-create",
		cfg.RateLimit.OrderWindow,
		cfg.RateLimit.OrderActorLimit,
		cfg.RateLimit.OrderIPLimit,
	)
	confirmPolicy := middleware.NewRateLimitPolicy(
		"payment-confirm",
		cfg.RateLimit.ConfirmWindow,
		cfg.RateLimit.ConfirmActorLimit,
		cfg.RateLimit.ConfirmIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Tenant(logg))
		r.Use(middleware.Idempotency(redisClient, cfg.Eventing.IdempotencyTTL, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", catalogcontrollers.List(svc.Catalog, logg))
			r.Get("/{itemId}", catalogcontrollers.Get(svc.Catalog, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/", catalogcontrollers.Create(svc.Catalog, logg))
				r.Post("/{itemId}/availability", catalogcontrollers.SetAvailability(svc.Catalog, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RateLimit(orderPolicy, redisClient, logg)).Post("/", ordercontrollers.Create(svc.Orders, logg))
			r.Get("/", ordercontrollers.List(svc.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Get(svc.Orders, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
			r.With(middleware.RequireStaff(logg)).Post("/{orderId}/status", ordercontrollers.Transition(svc.Orders, logg))
		})

		r.With(middleware.RateLimit(confirmPolicy, redisClient, logg)).Post("/payments/confirm", paymentcontrollers.Confirm(svc.Payments, logg))

		r.Route("/sell-requests", func(r chi.Router) {
			r.Post("/", sellrequestcontrollers.Create(svc.SellRequests, logg))
			r.Route("/{sellRequestId}", func(r chi.Router) {
				r.Get("/", sellrequestcontrollers.Get(svc.SellRequests, logg))
				r.Post("/quotes/{quoteId}/accept", sellrequestcontrollers.AcceptQuote(svc.SellRequests, logg))
				r.Post("/tracking", sellrequestcontrollers.AddTrackingNumber(svc.SellRequests, logg))
				r.Post("/cancel", sellrequestcontrollers.Cancel(svc.SellRequests, logg))
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireStaff(logg))
					r.Post("/quotes", sellrequestcontrollers.AddQuote(svc.SellRequests, logg))
					r.Post("/status", sellrequestcontrollers.Transition(svc.SellRequests, logg))
				})
			})
		})
	})

	return r
}
