package application

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// Probe carries the instruments every use case reports through.
type Probe struct {
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	compCounter  observability.Counter   // stock_compensations_total{use_case,outcome}
}

func NewProbe(tel observability.Observability, service string) Probe {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Probe{
		log:          tel.Logger().With(observability.F("service", service)),
		tracer:       tel.Tracer(),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
		extCounter:   m.Counter(observability.MExternalRequests),
		extHistogram: m.Histogram(observability.MExternalRequestDuration),
		compCounter:  m.Counter(observability.MStockCompensations),
	}
}

func (p Probe) Logger() observability.Logger { return p.log }

// Run tracks a single use case execution. Callers set Outcome/Status on failure paths
// and call End from a deferred func with the named error result.
type Run struct {
	probe   Probe
	useCase string
	start   time.Time
	ctx     context.Context
	span    trace.Span
	fields  []observability.Field

	Log     observability.Logger
	Outcome string
	Status  string
}

// Begin opens the span and prepares the request-scoped logger.
func (p Probe) Begin(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := p.tracer.Start(ctx, spanPrefix+spanName, attrs...)
	logger := logctx.FromOr(ctx, p.log).With(observability.F("use_case", useCase))
	ctx = logctx.With(ctx, logger)
	return ctx, &Run{
		probe:   p,
		useCase: useCase,
		start:   time.Now(),
		ctx:     ctx,
		span:    span,
		Log:     logger,
		Outcome: "success",
		Status:  "OK",
	}
}

func (r *Run) Span() trace.Span { return r.span }

// Fail records a failure outcome with a stable status code.
func (r *Run) Fail(status string) {
	r.Outcome, r.Status = "error", status
}

// Field attaches a field to the closing use_case_done line.
func (r *Run) Field(key string, value any) {
	r.fields = append(r.fields, observability.F(key, value))
}

func (r *Run) End(err error) {
	lat := time.Since(r.start).Seconds()

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.Status)
		} else {
			r.span.SetStatus(codes.Ok, r.Status)
		}
		r.span.End()
	}

	r.probe.reqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.Outcome),
	)
	r.probe.durHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := []observability.Field{
		observability.F("outcome", r.Outcome),
		observability.F("status", r.Status),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(r.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	fields = append(fields, r.fields...)
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	r.Log.Info("use_case_done", fields...)
}

// External records a call to a collaborator outside the process.
func (p Probe) External(peer, endpoint, outcome string, started time.Time) {
	p.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	p.extHistogram.Observe(time.Since(started).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

// Compensation counts a stock increment issued to reverse an earlier decrement.
func (p Probe) Compensation(useCase, outcome string) {
	p.compCounter.Add(1,
		observability.L("use_case", useCase),
		observability.L("outcome", outcome),
	)
}
