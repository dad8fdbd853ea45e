// Package tracing sets up OpenTelemetry export and the spans emitted per tick,
// stage and oracle call.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every span is created from.
const TracerName = "github.com/gerunddev/pokeagent"

// Config controls exporter setup.
type Config struct {
	ServiceName string
	Endpoint    string // OTLP/HTTP host:port; empty disables export
	Insecure    bool
}

// Init installs a global tracer provider that batches spans to the OTLP
// endpoint. With no endpoint it installs nothing and returns a no-op shutdown.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	tp := NewProvider(cfg.ServiceName, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider tagged with the service name.
func NewProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if serviceName == "" {
		serviceName = "pokeagent"
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	opts = append(opts, sdktrace.WithResource(res))
	return sdktrace.NewTracerProvider(opts...)
}

func tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartTickSpan starts the span covering one decision tick.
func StartTickSpan(ctx context.Context, mode string, frameID int64) (context.Context, trace.Span) {
	return tracer().Start(ctx, "agent.tick",
		trace.WithAttributes(
			attribute.String("agent.mode", mode),
			attribute.Int64("game.frame_id", frameID),
		),
	)
}

// StartStageSpan starts the span covering one pipeline stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "stage."+stage,
		trace.WithAttributes(attribute.String("agent.stage", stage)),
	)
}

// StartOracleSpan starts the span covering one oracle call.
func StartOracleSpan(ctx context.Context, backend, label string, withImage bool) (context.Context, trace.Span) {
	return tracer().Start(ctx, "oracle.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oracle.backend", backend),
			attribute.String("oracle.label", label),
			attribute.Bool("oracle.image", withImage),
		),
	)
}

// End records err (if any) on span and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
