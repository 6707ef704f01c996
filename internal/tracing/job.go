package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Carrier travels inside job payloads so a worker span joins the trace of
// the submission that produced it.
type Carrier struct {
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

func Inject(ctx context.Context) Carrier {
	m := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, m)
	return Carrier{TraceParent: m.Get("traceparent"), TraceState: m.Get("tracestate")}
}

func Extract(ctx context.Context, c Carrier) context.Context {
	if c.TraceParent == "" {
		return ctx
	}
	m := propagation.MapCarrier{"traceparent": c.TraceParent}
	if c.TraceState != "" {
		m["tracestate"] = c.TraceState
	}
	return propagation.TraceContext{}.Extract(ctx, m)
}

// StartJobSpan opens the consumer span for one media job.
func StartJobSpan(ctx context.Context, jobType, jobID, kind string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "job.process."+jobType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.type", jobType),
			attribute.String("job.id", jobID),
			attribute.String("media.kind", kind),
		),
	)
}

func StartSubmitSpan(ctx context.Context, jobType string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "job.submit."+jobType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("job.type", jobType)),
	)
}

// StartSweepSpan covers one expiration sweep cycle.
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "sweeper.run", trace.WithSpanKind(trace.SpanKindInternal))
}
