package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/livebag-backend/api/routes"
	"github.com/angelmondragon/livebag-backend/internal/bags"
	"github.com/angelmondragon/livebag-backend/internal/delivery"
	"github.com/angelmondragon/livebag-backend/internal/paymentreview"
	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/config"
	"github.com/angelmondragon/livebag-backend/pkg/db"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
	"github.com/angelmondragon/livebag-backend/pkg/mercadopago"
	"github.com/angelmondragon/livebag-backend/pkg/metrics"
	"github.com/angelmondragon/livebag-backend/pkg/migrate"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/redis"
	"github.com/angelmondragon/livebag-backend/pkg/tracing"
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
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing, "livebag-api", logg)
	if err != nil {
		logg.Error(context.Background(), "failed to init tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	params := bags.ServiceParams{
		Repository: bags.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		Gate:       delivery.NewGate(cfg.Fulfillment.CourierFeeAmount()),
		Labels:     shipping.LabelConfigFrom(cfg.MelhorEnvio),
		Metrics:    metrics.NewFulfillmentMetrics(registry),
		Logger:     logg,
	}

	if token := strings.TrimSpace(cfg.MercadoPago.AccessToken); token != "" {
		mpClient, err := mercadopago.NewClient(token,
			mercadopago.WithBaseURL(cfg.MercadoPago.BaseURL),
			mercadopago.WithTimeout(cfg.MercadoPago.Timeout),
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create mercado pago client", err)
			os.Exit(1)
		}
		params.Gateway = paymentreview.NewMercadoPagoGateway(mpClient)
	} else {
		logg.Warn(context.Background(), "mercado pago disabled, payment revalidation unavailable")
	}

	if cfg.MelhorEnvio.Enabled() {
		meClient, err := melhorenvio.NewClient(cfg.MelhorEnvio.Token,
			melhorenvio.WithBaseURL(cfg.MelhorEnvio.BaseURL),
			melhorenvio.WithUserAgent(cfg.MelhorEnvio.UserAgent),
			melhorenvio.WithTimeout(cfg.MelhorEnvio.Timeout),
			melhorenvio.WithLogger(logg),
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create melhor envio client", err)
			os.Exit(1)
		}
		quotes, err := delivery.NewQuoteService(meClient, cfg.MelhorEnvio.SenderPostalCode, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create quote service", err)
			os.Exit(1)
		}
		params.Carrier = meClient
		params.Quotes = quotes
	} else {
		logg.Warn(context.Background(), "melhor envio disabled, labels and quotes unavailable")
	}

	bagService, err := bags.NewService(params)
	if err != nil {
		logg.Error(context.Background(), "failed to create bag service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, bagService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
