// Package telemetry wires the control loop's state-machine transitions
// (Disconnected, Connecting, Running, Reloading, Draining, Terminated) into
// OpenTelemetry spans. Metrics are deliberately left to obsmetrics and
// prometheus/client_golang (see DESIGN.md) — this package owns tracing only.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config controls whether and where spans are exported.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // empty disables export; a provider still runs locally
	SampleRatio    float64
}

// Tracer emits spans for control-loop state transitions.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New builds a Tracer from cfg. With no OTLPEndpoint, spans are still
// created and sampled but never leave the process — useful for local runs
// without an otel collector.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if cfg.SampleRatio <= 0 {
		cfg.SampleRatio = 1
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	}
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return &Tracer{
		tracer:   tp.Tracer(cfg.ServiceName),
		provider: tp,
	}, nil
}

// Transition starts and immediately ends a zero-duration span marking a
// state-machine transition, tagging it with the from/to state names.
func (t *Tracer) Transition(ctx context.Context, from, to string) {
	_, span := t.tracer.Start(ctx, "loop.transition",
		trace.WithAttributes(
			attribute.String("loop.state.from", from),
			attribute.String("loop.state.to", to),
		))
	span.End()
}

// Tick wraps one control-loop iteration in a span, returning a function
// that ends it; callers defer the returned function.
func (t *Tracer) Tick(ctx context.Context, tier string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "loop.tick",
		trace.WithAttributes(attribute.String("loop.decision_tier", tier)))
	return ctx, func() { span.End() }
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// NoOp is a Tracer-shaped stand-in for sessions that disable tracing
// entirely; every method is a no-op.
type NoOp struct{}

// Transition implements the same shape as Tracer.Transition.
func (NoOp) Transition(context.Context, string, string) {}

// Tick implements the same shape as Tracer.Tick.
func (NoOp) Tick(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

// Shutdown implements the same shape as Tracer.Shutdown.
func (NoOp) Shutdown(context.Context) error { return nil }
