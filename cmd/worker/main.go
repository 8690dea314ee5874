package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/bootstrap"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/config"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/observability/logging"
	"github.com/Beaudoin0zach/benefits-navigator-sub000/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.CombinedHandler(
		app.WorkerMetrics.Gatherer(),
		app.GatewayMetrics.Gatherer(),
	))
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", "error", err)
		}
	}()

	slog.Info("worker_started",
		"stream", cfg.NATSStream,
		"subject", cfg.NATSSubject,
		"durable", cfg.NATSDurable,
		"concurrency", cfg.WorkerConcurrency,
	)

	if err := app.Queue.ConsumeDocumentTasks(ctx, app.Process.ProcessByID); err != nil {
		slog.Error("worker_consume_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics_shutdown_failed", "error", err)
	}
}
