// Package otel traces dispatched operations with OpenTelemetry. Every operation runs in
// its own span named "querycache.<op>"; failures are recorded on the span.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/querycache"
)

// ScopeName is the instrumentation scope used when no tracer is given.
const ScopeName = "github.com/unkn0wn-root/querycache"

// Decorator starts a span per operation.
type Decorator struct {
	tracer trace.Tracer
}

var _ querycache.Decorator = (*Decorator)(nil)

// New returns a Decorator using t, or the global provider's tracer when t is nil.
func New(t trace.Tracer) *Decorator {
	if t == nil {
		t = otel.Tracer(ScopeName)
	}
	return &Decorator{tracer: t}
}

func (d *Decorator) Decorate(ctx context.Context, op string, next func(context.Context) error) error {
	ctx, span := d.tracer.Start(ctx, "querycache."+op,
		trace.WithAttributes(attribute.String("querycache.op", op)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	err := next(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
