package workerpresentation

import (
	"context"
	"sort"

	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects an event-scoped logger for background handlers.
// attrs must stay low-cardinality (event name, consumer); event_id is generated when absent.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		if tel == nil {
			tel = observability.Nop()
		}
		base = tel.Logger()
	}

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "event_id" || attrs[k] == "" {
			continue
		}
		fields = append(fields, observability.F(k, attrs[k]))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Subscriber decorates a bus so every handler it registers starts with an
// event-scoped logger in its context.
type Subscriber struct {
	next     domoutbox.Subscriber
	consumer string
	log      observability.Logger
	tel      observability.Observability
}

var _ domoutbox.Subscriber = (*Subscriber)(nil)

func NewSubscriber(next domoutbox.Subscriber, consumer string, tel observability.Observability) *Subscriber {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Subscriber{
		next:     next,
		consumer: consumer,
		log:      tel.Logger().With(observability.F("component", "event_consumer")),
		tel:      tel,
	}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		sc := trace.SpanContextFromContext(ctx)
		ctx = WithEventContext(ctx, logctx.FromOr(ctx, s.log), s.tel, sc.TraceID(), sc.SpanID(), map[string]string{
			"event":    eventName,
			"consumer": s.consumer,
		})
		return h(ctx, e)
	})
}
