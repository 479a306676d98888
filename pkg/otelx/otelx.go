// Package otelx configures OpenTelemetry tracing and offers a span helper
// for business code.
package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/aussiebroadwan/accounts"

// Config defines the information needed to init tracing.
type Config struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector (host:port). Empty disables export.
	Endpoint string
	// Probability is the fraction of root spans sampled.
	Probability float64
	// ExcludedRoutes are never traced (health probes).
	ExcludedRoutes map[string]struct{}
}

// InitTracing installs the global tracer provider. The returned teardown
// flushes pending spans.
func InitTracing(ctx context.Context, log *slog.Logger, cfg Config) (trace.TracerProvider, func(context.Context), error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		log.Info("tracing disabled", slog.String("reason", "no otel endpoint configured"))
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) {}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Probability))),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing enabled",
		slog.String("endpoint", cfg.Endpoint),
		slog.Float64("probability", cfg.Probability),
	)

	teardown := func(ctx context.Context) {
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("tracing shutdown", slog.Any("error", err))
		}
	}
	return tp, teardown, nil
}

// AddSpan starts a span on the global provider. Callers must End it.
func AddSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name)
	span.SetAttributes(attrs...)
	return ctx, span
}

// RecordError marks the span failed when err is not nil and returns err.
func RecordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// HTTPMiddleware wraps h so every request outside excluded starts a server span.
func HTTPMiddleware(service string, excluded map[string]struct{}) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return otelhttp.NewHandler(h, service,
			otelhttp.WithFilter(func(r *http.Request) bool {
				_, skip := excluded[r.URL.Path]
				return !skip
			}),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return operation + " " + r.Method
			}),
		)
	}
}
