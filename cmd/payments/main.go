package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmelnik7/order-payments-platform/internal/broker"
	appconfig "github.com/dmelnik7/order-payments-platform/internal/config"
	"github.com/dmelnik7/order-payments-platform/internal/events"
	"github.com/dmelnik7/order-payments-platform/internal/ledger"
	"github.com/dmelnik7/order-payments-platform/internal/observability/metrics"
	"github.com/dmelnik7/order-payments-platform/internal/payments"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.ForService(cfg.LogLevel, "payments")
	logger.Info("starting payments service", "env", cfg.Env, "port", cfg.ServicePort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	b, err := broker.Connect(cfg.BrokerURL(), logger)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	m := metrics.NewPipelineMetrics(nil)

	store := ledger.NewStore(pool)
	handler := payments.NewHandler(store, logger)
	router := payments.NewRouter(handler, promhttp.Handler())

	dispatcher := events.NewDispatcher(pool, broker.NewEventPublisher(b), logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval).
		WithMetrics(m)
	go dispatcher.Run(ctx)

	consumer := payments.NewConsumer(pool, logger).WithMetrics(m)
	go func() {
		if err := b.Consume(ctx, broker.PaymentRequestsQueue, consumer.Handle); err != nil && ctx.Err() == nil {
			logger.Error("payment requests consumer stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down payments service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("payments service stopped")
}
