// cmd/grade-report/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"student-grading/internal/app"
	"student-grading/internal/common/config"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/metrics"
	"student-grading/internal/common/observability"
	"student-grading/internal/grading"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run grades the configured input once and returns the process exit code.
func run(ctx context.Context, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	zapLog, err := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(stderr, "error: build logger: %v\n", err)
		return 1
	}
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	opts, err := grading.OptionsFromConfig(cfg.Grading)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	reg := prometheus.NewRegistry()
	obs := observability.New(cfg.App.Name, observability.WithRegisterer(reg))
	defer obs.Shutdown()

	runnerOpts := []app.Option{app.WithObservability(obs)}

	fanout, closeExporters, err := app.BuildExporters(ctx, cfg, log)
	defer closeExporters()
	if err != nil {
		zapLog.Warn("result export disabled", zap.Error(err))
	} else {
		runnerOpts = append(runnerOpts, app.WithExporter(fanout))
	}

	notifier, err := app.BuildNotifier(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Warn("run notifications disabled", zap.Error(err))
	} else if notifier != nil {
		runnerOpts = append(runnerOpts, app.WithNotifier(notifier))
	}

	result, runErr := app.NewRunner(log, runnerOpts...).Run(ctx, opts)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
			zapLog.Warn("failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "error: %v\n", runErr)
		return 1
	}
	fmt.Fprintln(stdout, grading.Describe(result))
	return 0
}
