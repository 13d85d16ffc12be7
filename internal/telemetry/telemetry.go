package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds all telemetry instruments and providers.
// A zero Telemetry (or a nil pointer) is valid and records nothing.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	meter          metric.Meter
	gatherer       promclient.Gatherer

	// RED Metrics (Rate, Errors, Duration)
	httpRequestsTotal    metric.Int64Counter
	httpRequestDuration  metric.Float64Histogram
	httpRequestsInFlight metric.Int64UpDownCounter

	// Business Metrics
	batchesTotal          metric.Int64Counter
	downloadsTotal        metric.Int64Counter
	downloadsActive       metric.Int64UpDownCounter
	downloadDuration      metric.Float64Histogram
	attemptsTotal         metric.Int64Counter
	historyMergesTotal    metric.Int64Counter
	engineOperationsTotal metric.Int64Counter
	engineErrors          metric.Int64Counter
	dbOperationsTotal     metric.Int64Counter
	dbOperationDuration   metric.Float64Histogram
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint, when set, pushes metrics to an OTLP gRPC collector in
	// addition to the Prometheus scrape endpoint.
	OTLPEndpoint string
	// Registry defaults to the global Prometheus registry.
	Registry *promclient.Registry
}

// New creates a new telemetry instance.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	var (
		promOpts []prometheus.Option
		gatherer promclient.Gatherer = promclient.DefaultGatherer
	)

	if cfg.Registry != nil {
		promOpts = append(promOpts, prometheus.WithRegisterer(cfg.Registry))
		gatherer = cfg.Registry
	}

	exporter, err := prometheus.New(promOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	readers := []sdkmetric.Option{sdkmetric.WithReader(exporter)}

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}

		readers = append(readers, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(otlpExporter)))
	}

	meterProvider := sdkmetric.NewMeterProvider(readers...)
	tracerProvider := sdktrace.NewTracerProvider()

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	t := &Telemetry{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(cfg.ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:          meterProvider.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
		gatherer:       gatherer,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		return nil, fmt.Errorf("failed to start runtime metrics: %w", err)
	}

	return t, nil
}

// Enabled reports whether instruments are recording.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tracer != nil
}

// Tracer returns the OpenTelemetry tracer.
func (t *Telemetry) Tracer() trace.Tracer {
	if !t.Enabled() {
		return otel.Tracer("noop")
	}

	return t.tracer
}

// RecordHTTPRequest records HTTP request metrics.
func (t *Telemetry) RecordHTTPRequest(ctx context.Context, method, path, status string, duration time.Duration) {
	if !t.Enabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)

	t.httpRequestsTotal.Add(ctx, 1, attrs)
	t.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// IncrementHTTPInFlight increments in-flight HTTP requests.
func (t *Telemetry) IncrementHTTPInFlight(ctx context.Context) {
	if t.Enabled() {
		t.httpRequestsInFlight.Add(ctx, 1)
	}
}

// DecrementHTTPInFlight decrements in-flight HTTP requests.
func (t *Telemetry) DecrementHTTPInFlight(ctx context.Context) {
	if t.Enabled() {
		t.httpRequestsInFlight.Add(ctx, -1)
	}
}

// RecordBatch records a finished batch. status is "completed" or "aborted".
func (t *Telemetry) RecordBatch(ctx context.Context, status string, urls int) {
	if !t.Enabled() {
		return
	}

	t.batchesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("size", batchSizeBucket(urls)),
	))
}

// RecordDownload records the outcome of one URL.
func (t *Telemetry) RecordDownload(ctx context.Context, mediaType, status string, duration time.Duration) {
	if !t.Enabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("media_type", mediaType),
		attribute.String("status", status),
	)

	t.downloadsTotal.Add(ctx, 1, attrs)
	t.downloadDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordAttempt records one strategy attempt; attempt is the 1-based position in the cascade.
func (t *Telemetry) RecordAttempt(ctx context.Context, mediaType string, attempt int, status string) {
	if !t.Enabled() {
		return
	}

	t.attemptsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("media_type", mediaType),
		attribute.String("attempt", strconv.Itoa(attempt)),
		attribute.String("status", status),
	))
}

// RecordHistoryMerge records whether a produced file was new to the history.
func (t *Telemetry) RecordHistoryMerge(ctx context.Context, added bool) {
	if !t.Enabled() {
		return
	}

	result := "duplicate"
	if added {
		result = "added"
	}

	t.historyMergesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordEngineOperation records media engine invocations.
func (t *Telemetry) RecordEngineOperation(ctx context.Context, engine, operation, status string) {
	if !t.Enabled() {
		return
	}

	t.engineOperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("operation", operation),
		attribute.String("status", status),
	))

	if status == "error" {
		t.engineErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("operation", operation),
		))
	}
}

// RecordDBOperation records database operation metrics.
func (t *Telemetry) RecordDBOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if !t.Enabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	)

	t.dbOperationsTotal.Add(ctx, 1, attrs)
	t.dbOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// Handler returns the HTTP handler for metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	if !t.Enabled() {
		return http.NotFoundHandler()
	}

	if t.gatherer == promclient.DefaultGatherer {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the telemetry system.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	return errors.Join(
		t.meterProvider.Shutdown(ctx),
		t.tracerProvider.Shutdown(ctx),
	)
}

func batchSizeBucket(urls int) string {
	switch {
	case urls <= 1:
		return "1"
	case urls <= 10:
		return "2-10"
	default:
		return "10+"
	}
}

// initializeMetrics creates all metric instruments.
func (t *Telemetry) initializeMetrics() error {
	if err := t.initializeREDMetrics(); err != nil {
		return err
	}

	return t.initializeBusinessMetrics()
}

func (t *Telemetry) initializeREDMetrics() error {
	var err error

	t.httpRequestsTotal, err = t.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	t.httpRequestDuration, err = t.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration histogram: %w", err)
	}

	t.httpRequestsInFlight, err = t.meter.Int64UpDownCounter(
		"http_requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_in_flight counter: %w", err)
	}

	return nil
}

func (t *Telemetry) initializeBusinessMetrics() error {
	var err error

	t.batchesTotal, err = t.meter.Int64Counter(
		"batches_total",
		metric.WithDescription("Total number of processed batches"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create batches_total counter: %w", err)
	}

	t.downloadsTotal, err = t.meter.Int64Counter(
		"downloads_total",
		metric.WithDescription("Total number of URLs processed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	t.downloadsActive, err = t.meter.Int64UpDownCounter(
		"downloads_active",
		metric.WithDescription("Number of URLs currently being downloaded"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create downloads_active counter: %w", err)
	}

	t.downloadDuration, err = t.meter.Float64Histogram(
		"download_duration_seconds",
		metric.WithDescription("Time spent on one URL, all attempts included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create download_duration histogram: %w", err)
	}

	t.attemptsTotal, err = t.meter.Int64Counter(
		"strategy_attempts_total",
		metric.WithDescription("Total number of extraction strategy attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create strategy_attempts_total counter: %w", err)
	}

	t.historyMergesTotal, err = t.meter.Int64Counter(
		"history_merges_total",
		metric.WithDescription("Produced files merged into the history"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create history_merges_total counter: %w", err)
	}

	t.engineOperationsTotal, err = t.meter.Int64Counter(
		"engine_operations_total",
		metric.WithDescription("Total number of media engine invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine_operations_total counter: %w", err)
	}

	t.engineErrors, err = t.meter.Int64Counter(
		"engine_errors_total",
		metric.WithDescription("Total number of failed media engine invocations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine_errors counter: %w", err)
	}

	t.dbOperationsTotal, err = t.meter.Int64Counter(
		"db_operations_total",
		metric.WithDescription("Total number of database operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operations_total counter: %w", err)
	}

	t.dbOperationDuration, err = t.meter.Float64Histogram(
		"db_operation_duration_seconds",
		metric.WithDescription("Database operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create db_operation_duration histogram: %w", err)
	}

	return nil
}
