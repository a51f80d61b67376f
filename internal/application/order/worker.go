package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	workerService  = "order-events-relay"
	useCaseRelay   = "order.worker.relay"
	relaySpanName  = "UC.RelayOrderEvent"
	envelopeSchema = 1
)

// Envelope is the broker message body for every relayed order event.
type Envelope struct {
	Schema    int             `json:"schema"`
	Event     string          `json:"event"`
	OrderID   string          `json:"order_id"`
	RelayedAt time.Time       `json:"relayed_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Worker relays order events from the in-process bus to an EventSink.
type Worker struct {
	subscriber domoutbox.Subscriber
	sink       EventSink
	tel        observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewWorker(
	subscriber domoutbox.Subscriber,
	sink EventSink,
	tel observability.Observability,
) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Worker{
		subscriber:   subscriber,
		sink:         sink,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   m.Counter(observability.MUsecaseRequests),
		durHistogram: m.Histogram(observability.MUsecaseDuration),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.sink == nil {
		return
	}
	for _, name := range []string{
		domorder.EventOrderPlaced,
		domorder.EventStatusChanged,
		domorder.EventPaymentStatusChanged,
	} {
		w.subscriber.Subscribe(name, w.relay)
	}
}

func (w *Worker) relay(ctx context.Context, e domoutbox.Event) (err error) {
	orderID, ok := domoutbox.KeyOf(e)
	if !ok {
		w.count("ignored")
		return nil
	}

	ctx, span := w.tel.Tracer().Start(ctx, relaySpanName,
		attribute.String("use_case", useCaseRelay),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, w.log).With(
		observability.F("use_case", useCaseRelay),
		observability.F("event", e.EventName()),
		observability.F("order_id", orderID),
	)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		logger = logger.With(
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	ctx = logctx.With(ctx, logger)

	defer func() {
		lat := time.Since(start).Seconds()
		w.observe(outcome, lat)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.Err(err))
			span.RecordError(err)
		}
		logger.Info("use_case_done", fields...)

		if outcome == "error" {
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	payload, err := json.Marshal(e)
	if err != nil {
		outcome, status = "error", "EVENT_ENCODE_FAILED"
		return fmt.Errorf("relay: encode %s: %w", e.EventName(), err)
	}
	body, err := json.Marshal(Envelope{
		Schema:    envelopeSchema,
		Event:     e.EventName(),
		OrderID:   orderID,
		RelayedAt: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		outcome, status = "error", "EVENT_ENCODE_FAILED"
		return fmt.Errorf("relay: encode envelope: %w", err)
	}

	if err := w.sink.Send(ctx, orderID, body); err != nil {
		outcome, status = "error", "SINK_SEND_FAILED"
		return fmt.Errorf("relay: send %s: %w", e.EventName(), err)
	}
	return nil
}

func (w *Worker) count(outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCaseRelay),
		observability.L("outcome", outcome),
	)
}

func (w *Worker) observe(outcome string, latencySeconds float64) {
	w.count(outcome)
	w.durHistogram.Observe(latencySeconds,
		observability.L("use_case", useCaseRelay),
	)
}
