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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/devicetrade-backend/api/routes"
	"github.com/angelmondragon/devicetrade-backend/internal/catalog"
	"github.com/angelmondragon/devicetrade-backend/internal/orders"
	"github.com/angelmondragon/devicetrade-backend/internal/payments"
	"github.com/angelmondragon/devicetrade-backend/internal/reservation"
	"github.com/angelmondragon/devicetrade-backend/internal/sellrequests"
	"github.com/angelmondragon/devicetrade-backend/pkg/config"
	"github.com/angelmondragon/devicetrade-backend/pkg/db"
	"github.com/angelmondragon/devicetrade-backend/pkg/logger"
	"github.com/angelmondragon/devicetrade-backend/pkg/metrics"
	"github.com/angelmondragon/devicetrade-backend/pkg/migrate"
	"github.com/angelmondragon/devicetrade-backend/pkg/outbox"
	"github.com/angelmondragon/devicetrade-backend/pkg/paymentgateway"
	"github.com/angelmondragon/devicetrade-backend/pkg/redis"
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
		Environment: cfg.App.Env,
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

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
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
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, promhttp.Handler(), services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	tradeMetrics := metrics.NewTradeMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalogRepo := catalog.NewRepository(dbClient.DB())
	inventory, err := reservation.NewManager(catalogRepo, dbClient, tradeMetrics)
	if err != nil {
		return routes.Services{}, err
	}
	catalogSvc, err := catalog.NewService(catalogRepo, inventory)
	if err != nil {
		return routes.Services{}, err
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	orderSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, inventory, orders.NewNumberGenerator(cfg.Orders.NumberPrefix), logg)
	if err != nil {
		return routes.Services{}, err
	}

	gateway, err := paymentgateway.NewClient(
		cfg.PaymentGateway.SecretKey,
		paymentgateway.WithBaseURL(cfg.PaymentGateway.BaseURL),
		paymentgateway.WithTimeout(cfg.PaymentGateway.Timeout),
	)
	if err != nil {
		return routes.Services{}, err
	}
	confirmLock, err := payments.NewRedisLocker(redisClient, cfg.Eventing.ConfirmLockTTL)
	if err != nil {
		return routes.Services{}, err
	}
	paymentSvc, err := payments.NewService(payments.Deps{
		Orders:    ordersRepo,
		Payments:  payments.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Outbox:    outboxSvc,
		Inventory: inventory,
		Gateway:   gateway,
		Lock:      confirmLock,
		Metrics:   tradeMetrics,
		Logger:    logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	sellRequestSvc, err := sellrequests.NewService(sellrequests.NewRepository(dbClient.DB()), dbClient, outboxSvc, logg)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Catalog:      catalogSvc,
		Orders:       orderSvc,
		Payments:     paymentSvc,
		SellRequests: sellRequestSvc,
	}, nil
}
