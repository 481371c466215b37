package observability

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	runCounter     otelmetric.Int64Counter
	rowCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
}

type options struct {
	registerer     prometheus.Registerer
	spanProcessors []sdktrace.SpanProcessor
	global         bool
}

type Option func(*options)

// WithRegisterer sends otel instruments to reg instead of the default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSpanProcessor attaches a span processor, e.g. an exporter or a test recorder.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanProcessors = append(o.spanProcessors, sp) }
}

// WithoutGlobal keeps the providers out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) { o.global = false }
}

func New(serviceName string, opts ...Option) *Observability {
	cfg := options{registerer: prometheus.DefaultRegisterer, global: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	tpOpts := make([]sdktrace.TracerProviderOption, 0, len(cfg.spanProcessors))
	for _, sp := range cfg.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	o := &Observability{
		serviceName:    serviceName,
		tracerProvider: sdktrace.NewTracerProvider(tpOpts...),
	}
	if cfg.global {
		otel.SetTracerProvider(o.tracerProvider)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(cfg.registerer))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
	if cfg.global {
		otel.SetMeterProvider(o.meterProvider)
	}
	o.meter = o.meterProvider.Meter(serviceName)

	o.runCounter, _ = o.meter.Int64Counter(
		"grading_pipeline_runs",
		otelmetric.WithDescription("Number of grading runs"),
	)
	o.rowCounter, _ = o.meter.Int64Counter(
		"grading_pipeline_rows",
		otelmetric.WithDescription("Number of rows graded"),
	)
	o.runDuration, _ = o.meter.Float64Histogram(
		"grading_pipeline_run_duration",
		otelmetric.WithDescription("Grading run duration"),
		otelmetric.WithUnit("ms"),
	)
	return o
}

// Tracer returns the tracer used for pipeline stage spans.
func (o *Observability) Tracer() trace.Tracer {
	return o.tracerProvider.Tracer(o.serviceName)
}

func (o *Observability) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return o.Tracer().Start(ctx, name)
}

// RecordRun records one finished run; rows is ignored for failed runs.
func (o *Observability) RecordRun(ctx context.Context, engine, outcome string, rows int, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("outcome", outcome),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.rowCounter != nil && outcome == "success" {
		o.rowCounter.Add(ctx, int64(rows), otelmetric.WithAttributes(attribute.String("engine", engine)))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
