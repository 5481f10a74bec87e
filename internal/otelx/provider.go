// Package otelx builds and tears down the process-wide OpenTelemetry
// TracerProvider the invoker spans its outbound HTTP calls against: an
// OTLP/gRPC exporter, a ParentBased(TraceIDRatioBased) sampler, and a
// graceful degrade-to-nil when no collector is configured or the exporter
// cannot be created.
package otelx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/cronmasterd/core/internal/config"
)

const defaultSampleRatio = 0.1

// Init builds a TracerProvider from cfg and sets it as the global
// provider. Returns (nil, nil) when cfg.Endpoint is empty — tracing is
// simply off, not an error. An exporter that cannot be created also
// degrades to (nil, nil). The exporter connects lazily, so an unreachable
// collector does not fail Init.
func Init(ctx context.Context, cfg config.OTelConfig, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		logger.DebugContext(ctx, "otel: tracing disabled, no endpoint configured")
		return nil, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		logger.WarnContext(ctx, "otel: exporter dial failed, tracing disabled",
			slog.Any("error", err), slog.String("endpoint", cfg.Endpoint))
		return nil, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "cronmasterd"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("otelx: build resource: %w", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(defaultSampleRatio))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	logger.InfoContext(ctx, "otel: tracing initialized",
		slog.String("endpoint", cfg.Endpoint), slog.String("service", serviceName))
	return tp, nil
}

// Shutdown flushes and stops tp, a no-op when tp is nil.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("otelx: shutdown tracer: %w", err)
	}
	return nil
}
