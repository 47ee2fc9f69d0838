package oteltrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/likha-market/marketplace/internal/observability"
)

type tracer struct{ t trace.Tracer }

// New returns an observability.Tracer backed by the globally registered otel
// tracer provider. Exporter setup (OTLP, stdout) is a deployment concern and
// happens before calling this.
func New(name string) observability.Tracer {
	if name == "" {
		name = "marketplace"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
