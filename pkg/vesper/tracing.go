package vesper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig defines how request cycles are traced.
type TracingConfig struct {
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// TracerName is the name of the tracer (default: "vesper")
	TracerName string
	// Propagator is the propagation format (default: TraceContext)
	Propagator propagation.TextMapPropagator
}

// DefaultTracingConfig returns a TracingConfig with sensible defaults.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName: "vesper",
		Propagator: propagation.TraceContext{},
	}
}

type tracing struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func newTracing(config TracingConfig) tracing {
	if config.TracerName == "" {
		config.TracerName = "vesper"
	}
	if config.Propagator == nil {
		config.Propagator = propagation.TraceContext{}
	}
	provider := config.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return tracing{
		tracer:     provider.Tracer(config.TracerName),
		propagator: config.Propagator,
	}
}

// start opens the server span of a request cycle, continuing any trace
// context carried by the request headers.
func (t tracing) start(head *RequestHead, kind string) (context.Context, trace.Span) {
	parent := t.propagator.Extract(context.Background(), headCarrier{head: head})
	ctx, span := t.tracer.Start(parent, head.Method+" "+kind, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.method", head.Method),
		attribute.String("http.target", head.URI),
		attribute.String("http.flavor", head.Version()),
		attribute.String("vesper.kind", kind),
	)
	return ctx, span
}

// endSpan closes span with the outcome of the cycle.
func endSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case status >= 500:
		span.SetStatus(codes.Error, "HTTP error")
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// headCarrier adapts a request head to propagation.TextMapCarrier. It is
// read-only.
type headCarrier struct {
	head *RequestHead
}

func (hc headCarrier) Get(key string) string {
	return hc.head.Get(key)
}

func (hc headCarrier) Set(string, string) {}

func (hc headCarrier) Keys() []string {
	keys := make([]string, 0, len(hc.head.Headers))
	for _, h := range hc.head.Headers {
		keys = append(keys, h[0])
	}
	return keys
}
