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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/prompts"
	"github.com/angelmondragon/storefront/internal/visitor"
	"github.com/angelmondragon/storefront/pkg/clientstore"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/pricing"
	"github.com/angelmondragon/storefront/pkg/redis"
	"github.com/angelmondragon/storefront/pkg/storefront"
)

const serviceName = "storefront"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	checks := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to connect to redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		checks["redis"] = redisClient
	}

	var storage clientstore.Store
	switch cfg.Storage.NormalizedBackend() {
	case config.StorageBackendFile:
		storage, err = clientstore.NewFile(cfg.Storage.FileDir)
	case config.StorageBackendRedis:
		storage, err = clientstore.NewRedis(redisClient, cfg.Session.GuestTTL)
	case config.StorageBackendSQLite:
		var dbClient *db.Client
		dbClient, err = db.New(context.Background(), cfg.Storage.SQLiteDSN, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to open client store database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err = dbClient.Migrate(context.Background(), &models.ClientEntry{}); err == nil {
			storage, err = clientstore.NewSQL(dbClient.DB())
		}
		checks["database"] = dbClient
	default:
		storage = clientstore.NewMemory()
	}
	if err != nil {
		logg.Error(context.Background(), "failed to create client store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	upstreamMetrics := metrics.NewUpstreamMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	client, err := storefront.NewClient(
		cfg.Backend.BaseURL,
		storefront.WithTimeout(cfg.Backend.Timeout),
		storefront.WithUserAgent(cfg.Backend.UserAgent),
		storefront.WithMetrics(upstreamMetrics),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create storefront client", err)
		os.Exit(1)
	}

	fees, err := cfg.Checkout.Fees()
	if err != nil {
		logg.Error(context.Background(), "failed to parse checkout fees", err)
		os.Exit(1)
	}
	calc := pricing.NewCalculator(fees.Shipping, fees.Handling)

	observers := &cart.Observers{}
	if redisClient != nil {
		publisher, err := cart.NewRedisPublisher(redisClient, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create cart publisher", err)
			os.Exit(1)
		}
		observers.Register(publisher)
	}

	scripts, err := checkout.NewScriptProbe(&http.Client{}, cfg.Payment.ScriptURL, cfg.Checkout.ScriptLoadTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment script probe", err)
		os.Exit(1)
	}
	widget := checkout.NewCallbackWidget()
	sessions := checkout.NewRegistry(cfg.Checkout.SessionTTL)

	visitors, err := visitor.NewFactory(visitor.Deps{
		Client:   client,
		Storage:  storage,
		Calc:     calc,
		UI:       prompts.NewContextUI(logg),
		Scripts:  scripts,
		Widget:   widget,
		Observer: observers,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	}, visitor.Config{
		GuestCartKey: cfg.Storage.GuestCartKey,
		TokenKey:     cfg.Storage.AuthTokenKey,
		IdleTTL:      cfg.Session.VisitorIdleTTL,
		Checkout: checkout.Options{
			Currency:       cfg.Checkout.Currency,
			KeyID:          cfg.Payment.KeyID,
			MerchantName:   cfg.Payment.MerchantName,
			ScriptURL:      cfg.Payment.ScriptURL,
			PaymentTimeout: cfg.Checkout.PaymentTimeout,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create visitor factory", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
		"storage":  cfg.Storage.NormalizedBackend(),
	})
	logg.Info(runCtx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			redisClient,
			checks,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			visitors,
			sessions,
			widget,
			calc,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "storefront server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(runCtx, "shutting down storefront server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}
