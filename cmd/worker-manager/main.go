// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"student-grading/internal/app"
	"student-grading/internal/common/camunda"
	"student-grading/internal/common/config"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/observability"
	gsr "student-grading/internal/workers/grading/grade-student-records"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateWorkerManager(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zapLog.Info("Starting worker manager",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("broker", cfg.Camunda.BrokerAddress))

	// --- Zeebe Client ---
	zeebeClient, err := camunda.NewClientWithConfig(ctx, camunda.ClientConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Error("Failed to connect to Zeebe", zap.Error(err))
		os.Exit(1)
	}

	// --- Health & Metrics Server ---
	var ready atomic.Bool
	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newHealthMux(&ready, zeebeClient.HealthCheck, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Result sinks ---
	runnerOpts := []app.Option{app.WithObservability(obs)}
	fanout, closeExporters, err := app.BuildExporters(ctx, cfg, log)
	defer closeExporters()
	if err != nil {
		zapLog.Warn("Result export disabled", zap.Error(err))
	} else {
		runnerOpts = append(runnerOpts, app.WithExporter(fanout))
	}
	notifier, err := app.BuildNotifier(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Warn("Run notifications disabled", zap.Error(err))
	} else if notifier != nil {
		runnerOpts = append(runnerOpts, app.WithNotifier(notifier))
	}

	// --- Workers ---
	handler, err := gsr.NewHandler(gsr.HandlerOptions{
		AppConfig: cfg,
		Runner:    app.NewRunner(log, runnerOpts...),
		Logger:    log,
	})
	if err != nil {
		zapLog.Error("Failed to create grading handler", zap.Error(err))
		_ = zeebeClient.Close()
		_ = server.Close()
		os.Exit(1)
	}

	var workers []*camunda.CamundaWorker
	if handler.IsEnabled() {
		wcfg := handler.GetConfig()
		workers = append(workers, camunda.NewWorker(
			zeebeClient.GetClient(),
			handler.GetTaskType(),
			camunda.WorkerOptions{MaxJobsActive: wcfg.MaxJobsActive, Timeout: wcfg.Timeout},
			handler,
			zapLog,
		))
		zapLog.Info("worker started",
			zap.String("taskType", handler.GetTaskType()),
			zap.Int("maxJobsActive", wcfg.MaxJobsActive),
			zap.Duration("timeout", wcfg.Timeout))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", handler.GetTaskType()))
	}

	ready.Store(true)
	zapLog.Info("Worker manager ready", zap.Int("workers", len(workers)))

	// --- Graceful Shutdown ---
	<-ctx.Done()
	ready.Store(false)
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
