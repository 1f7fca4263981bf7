package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmelnik7/order-payments-platform/internal/broker"
	appconfig "github.com/dmelnik7/order-payments-platform/internal/config"
	"github.com/dmelnik7/order-payments-platform/internal/notifications"
	"github.com/dmelnik7/order-payments-platform/internal/observability/metrics"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.ForService(cfg.LogLevel, "notifications")
	logger.Info("starting notifications service", "env", cfg.Env, "ws_host", cfg.WSHost, "ws_port", cfg.WSPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := broker.Connect(cfg.BrokerURL(), logger)
	if err != nil {
		logger.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	m := metrics.NewPipelineMetrics(nil)

	hub := notifications.NewHub()

	consumer := notifications.NewResultsConsumer(hub, logger).WithMetrics(m)
	go func() {
		if err := b.Consume(ctx, broker.PaymentResultsNotificationsQueue, consumer.Handle); err != nil && ctx.Err() == nil {
			logger.Error("payment results consumer stopped", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", notifications.ServeWS(hub, logger, m))

	srv := &http.Server{
		Addr:        cfg.WSHost + ":" + cfg.WSPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
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

	logger.Info("shutting down notifications service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("notifications service stopped")
}
