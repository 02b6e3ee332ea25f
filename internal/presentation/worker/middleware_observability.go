package workerpresentation

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes (e.g. "use_case", "event").
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = tel.Logger()
	}

	fields := make([]observability.Field, 0, 3+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Middleware opens a consumer span per delivery and records handler metrics.
func Middleware(tel observability.Observability) domoutbox.Middleware {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	reqCounter := m.Counter(observability.MUsecaseRequests)
	durHistogram := m.Histogram(observability.MUsecaseDuration)
	base := tel.Logger()

	return func(eventName string, next domoutbox.Handler) domoutbox.Handler {
		useCase := "event." + eventName
		return func(ctx context.Context, e domoutbox.Event) error {
			ctx, span := tel.Tracer().Start(ctx, "Event."+eventName,
				attribute.String("use_case", useCase),
				attribute.String("event", eventName),
			)
			defer span.End()

			sc := span.SpanContext()
			ctx = WithEventContext(ctx, logctx.FromOr(ctx, base), tel, sc.TraceID(), sc.SpanID(),
				map[string]string{"event": eventName})

			start := time.Now()
			err := next(ctx, e)
			outcome := "success"
			if err != nil {
				outcome = "error"
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "OK")
			}
			reqCounter.Add(1, observability.L("use_case", useCase), observability.L("outcome", outcome))
			durHistogram.Observe(time.Since(start).Seconds(), observability.L("use_case", useCase))
			return err
		}
	}
}
