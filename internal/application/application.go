package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

const (
	SpanPrefix     = "UC."
	PublishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Instruments holds the tracer, base logger and RED instruments shared by the use cases of one service.
type Instruments struct {
	Tracer       observability.Tracer
	Log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	metrics      observability.Metrics
}

// NewInstruments resolves instruments from tel, falling back to no-ops when tel is nil.
func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		Tracer:       tel.Tracer(),
		Log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
		metrics:      m,
	}
}

func (in Instruments) Counter(key observability.MetricKey) observability.Counter {
	if in.metrics == nil {
		return observability.NopCounter()
	}
	return in.metrics.Counter(key)
}

// Run tracks one use case execution and emits the closing use_case_done line.
type Run struct {
	in      Instruments
	ctx     context.Context
	span    trace.Span
	logger  observability.Logger
	useCase string
	start   time.Time
	outcome string
	status  string
	fields  []observability.Field
}

// Begin starts the span and binds a use-case scoped logger onto the returned context.
func (in Instruments) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.Tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	ctx, logger := logctx.Enrich(ctx, in.Log, observability.F("use_case", useCase))
	return ctx, &Run{
		in:      in,
		ctx:     ctx,
		span:    span,
		logger:  logger,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
	}
}

func (r *Run) Logger() observability.Logger { return r.logger }
func (r *Run) Span() trace.Span             { return r.span }

// Fail marks the run as failed with a machine-readable status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// SetStatus overrides the status text without changing the outcome.
func (r *Run) SetStatus(status string) {
	r.status = status
}

// Add appends fields to the closing log line.
func (r *Run) Add(fields ...observability.Field) {
	r.fields = append(r.fields, fields...)
}

// End closes the span, records metrics and logs use_case_done.
func (r *Run) End(err error) {
	if err != nil && r.outcome == "success" {
		r.outcome = "error"
		if r.status == "OK" {
			r.status = "ERROR"
		}
	}
	lat := time.Since(r.start).Seconds()

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	if r.in.reqCounter != nil {
		r.in.reqCounter.Add(1,
			observability.L("use_case", r.useCase),
			observability.L("outcome", r.outcome),
		)
	}
	if r.in.durHistogram != nil {
		r.in.durHistogram.Observe(lat,
			observability.L("use_case", r.useCase),
		)
	}

	fields := []observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}
	fields = append(fields, observability.TraceFields(r.ctx)...)
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.logger.Info("use_case_done", fields...)
}

// Publish sends e to publisher under PublishTimeout and records the external call.
func (in Instruments) Publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil || e == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()
	start := time.Now()
	err := publisher.Publish(pubCtx, e)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	in.ObserveExternal(PublishPeer, e.EventName(), outcome, start)
	return err
}

// ObserveExternal records one call to an external peer.
func (in Instruments) ObserveExternal(peer, endpoint, outcome string, start time.Time) {
	if in.extCounter != nil {
		in.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if in.extHistogram != nil {
		in.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}
