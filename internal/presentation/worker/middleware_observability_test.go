package workerpresentation

import (
	"context"
	"sync"
	"testing"

	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type recordingLogger struct {
	mu     *sync.Mutex
	fields []observability.Field
	lines  *[]map[string]any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, lines: &[]map[string]any{}}
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{mu: l.mu, fields: append(append([]observability.Field(nil), l.fields...), fields...), lines: l.lines}
}

func (l *recordingLogger) record(msg string, fields ...observability.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := map[string]any{"msg": msg}
	for _, f := range append(append([]observability.Field(nil), l.fields...), fields...) {
		line[f.Key] = f.Value
	}
	*l.lines = append(*l.lines, line)
}

func (l *recordingLogger) Debug(msg string, fields ...observability.Field) { l.record(msg, fields...) }
func (l *recordingLogger) Info(msg string, fields ...observability.Field)  { l.record(msg, fields...) }
func (l *recordingLogger) Warn(msg string, fields ...observability.Field)  { l.record(msg, fields...) }
func (l *recordingLogger) Error(msg string, fields ...observability.Field) { l.record(msg, fields...) }

type namedEvent string

func (e namedEvent) EventName() string { return string(e) }

type mapBus map[string]domoutbox.Handler

func (b mapBus) Subscribe(name string, h domoutbox.Handler) { b[name] = h }

func TestWithEventContext(t *testing.T) {
	base := newRecordingLogger()
	traceID := trace.TraceID{1}
	spanID := trace.SpanID{2}

	ctx := WithEventContext(context.Background(), base, nil, traceID, spanID, map[string]string{
		"event_id": "evt-1",
		"event":    "order.placed",
		"empty":    "",
	})
	logctx.From(ctx).Info("handled")

	require.Len(t, *base.lines, 1)
	line := (*base.lines)[0]
	assert.Equal(t, "evt-1", line["event_id"])
	assert.Equal(t, "order.placed", line["event"])
	assert.Equal(t, traceID.String(), line["trace_id"])
	assert.Equal(t, spanID.String(), line["span_id"])
	assert.NotContains(t, line, "empty")
}

func TestWithEventContext_GeneratesEventID(t *testing.T) {
	base := newRecordingLogger()
	ctx := WithEventContext(context.Background(), base, nil, trace.TraceID{}, trace.SpanID{}, nil)
	logctx.From(ctx).Info("handled")

	line := (*base.lines)[0]
	assert.NotEmpty(t, line["event_id"])
	assert.NotContains(t, line, "trace_id")
}

func TestSubscriber_InjectsLoggerIntoHandlers(t *testing.T) {
	bus := mapBus{}
	base := newRecordingLogger()
	sub := NewSubscriber(bus, "order-events-relay", nil)

	sub.Subscribe("order.placed", func(ctx context.Context, e domoutbox.Event) error {
		logctx.From(ctx).Info("relayed")
		return nil
	})

	ctx := logctx.With(context.Background(), base)
	require.NoError(t, bus["order.placed"](ctx, namedEvent("order.placed")))

	require.Len(t, *base.lines, 1)
	line := (*base.lines)[0]
	assert.Equal(t, "order.placed", line["event"])
	assert.Equal(t, "order-events-relay", line["consumer"])
	assert.NotEmpty(t, line["event_id"])
}
