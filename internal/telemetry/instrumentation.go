package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span attributes must stay low cardinality: media type, attempt position, status,
// component names. URLs, titles and file paths go to logs, never to attributes.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation wraps fn in a span named operationName.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc, attrs ...attribute.KeyValue) error {
	if !t.Enabled() {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)
	span.SetAttributes(attrs...)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if !t.Enabled() {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)

	t.RecordDBOperation(ctx, operation, statusOf(err), time.Since(start))

	return err
}

// InstrumentEngineOperation instruments invocations of the external media engine.
func (t *Telemetry) InstrumentEngineOperation(ctx context.Context, engine, operation string, fn InstrumentedFunc) error {
	if !t.Enabled() {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "engine_"+operation, "media_engine", fn,
		attribute.String("engine.name", engine),
		attribute.String("engine.operation", operation),
	)

	t.RecordEngineOperation(ctx, engine, operation, statusOf(err))

	return err
}

// InstrumentDownload instruments the processing of one URL across all of its attempts.
func (t *Telemetry) InstrumentDownload(ctx context.Context, mediaType string, fn InstrumentedFunc) error {
	if !t.Enabled() {
		return fn(ctx)
	}

	start := time.Now()

	t.downloadsActive.Add(ctx, 1)
	defer t.downloadsActive.Add(ctx, -1)

	err := t.InstrumentOperation(ctx, "download", "downloader", fn,
		attribute.String("download.media_type", mediaType),
	)

	t.RecordDownload(ctx, mediaType, statusOf(err), time.Since(start))

	return err
}

// InstrumentAttempt instruments one strategy attempt of the fallback cascade.
func (t *Telemetry) InstrumentAttempt(ctx context.Context, mediaType string, attempt int, fn InstrumentedFunc) error {
	if !t.Enabled() {
		return fn(ctx)
	}

	err := t.InstrumentOperation(ctx, "strategy_attempt", "cascade", fn,
		attribute.String("attempt.media_type", mediaType),
		attribute.Int("attempt.position", attempt),
	)

	t.RecordAttempt(ctx, mediaType, attempt, statusOf(err))

	return err
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
