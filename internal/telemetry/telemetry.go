// Package telemetry wires OpenTelemetry tracing and metrics for the
// execution engine, grounded on the teacher's tools/internal/telemetry
// package: same service-scoped tracer/meter globals and Init/Shutdown
// shape, minus the OTLP exporter wiring (no collector endpoint is part
// of this spec's scope, so spans/metrics are recorded against a local
// SDK provider rather than shipped off-process).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "codesession"

var (
	tracer trace.Tracer
	meter  metric.Meter

	executionCounter  metric.Int64Counter
	executionDuration metric.Float64Histogram
	executionErrors   metric.Int64Counter
)

// Init installs a local (non-exporting) trace provider and initializes
// the package-scoped tracer/meter/instruments. Safe to call more than
// once; each call replaces the global provider.
func Init() func(context.Context) error {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)

	tracer = otel.Tracer(serviceName)
	meter = otel.Meter(serviceName)

	executionCounter, _ = meter.Int64Counter(
		"codesession.executions",
		metric.WithDescription("Number of execute() calls processed"),
	)
	executionDuration, _ = meter.Float64Histogram(
		"codesession.execution.duration",
		metric.WithDescription("Execute() wall-clock duration in seconds"),
		metric.WithUnit("s"),
	)
	executionErrors, _ = meter.Int64Counter(
		"codesession.execution.errors",
		metric.WithDescription("Number of execute() calls that returned a user-visible error"),
	)

	return provider.Shutdown
}

// StartExecute opens a span for one execute() call. Callers must call
// the returned End func exactly once with the resulting error kind
// ("" for success).
func StartExecute(ctx context.Context, backend string, codeLen int) (context.Context, func(errKind string)) {
	if tracer == nil {
		Init()
	}
	spanCtx, span := tracer.Start(ctx, "session.execute",
		trace.WithAttributes(
			attribute.String("codesession.backend", backend),
			attribute.Int("codesession.code_len", codeLen),
		),
	)
	start := time.Now()
	return spanCtx, func(errKind string) {
		elapsed := time.Since(start).Seconds()
		if executionCounter != nil {
			executionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
		}
		if executionDuration != nil {
			executionDuration.Record(ctx, elapsed, metric.WithAttributes(attribute.String("backend", backend)))
		}
		if errKind != "" {
			span.SetStatus(codes.Error, errKind)
			span.SetAttributes(attribute.String("codesession.error_kind", errKind))
			if executionErrors != nil {
				executionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errKind)))
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}
