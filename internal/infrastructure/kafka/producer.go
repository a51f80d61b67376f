package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

const peer = "kafka"

// ErrUnavailable is returned while the breaker is open and sends are short-circuited.
var ErrUnavailable = errors.New("kafka: producer unavailable")

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker stays open before a probe send.
	OpenFor time.Duration
}

// Producer writes keyed messages to one topic behind a circuit breaker.
type Producer struct {
	writer  MessageWriter
	topic   string
	breaker *gobreaker.CircuitBreaker[struct{}]
	log     observability.Logger
	sent    observability.Counter   // external_requests_total{peer,endpoint,outcome}
	latency observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewProducer(writer MessageWriter, topic string, bs BreakerSettings, tel observability.Observability) *Producer {
	if tel == nil {
		tel = observability.Nop()
	}
	if bs.ConsecutiveFailures == 0 {
		bs.ConsecutiveFailures = 5
	}
	if bs.OpenFor <= 0 {
		bs.OpenFor = 30 * time.Second
	}
	log := tel.Logger().With(observability.F("component", "kafka_producer"), observability.F("topic", topic))

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka:" + topic,
		MaxRequests: 1,
		Timeout:     bs.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= bs.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit_breaker_state_changed",
				observability.F("breaker", name),
				observability.F("from", from.String()),
				observability.F("to", to.String()),
			)
		},
	})

	return &Producer{
		writer:  writer,
		topic:   topic,
		breaker: breaker,
		log:     log,
		sent:    tel.Metrics().Counter(observability.MExternalRequests),
		latency: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

func (p *Producer) Send(ctx context.Context, key string, payload []byte) error {
	start := time.Now()
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, kafkago.Message{
			Key:   []byte(key),
			Value: payload,
			Time:  time.Now().UTC(),
		})
	})

	outcome := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "short_circuit"
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	case err != nil:
		outcome = "error"
		err = fmt.Errorf("kafka: write %s: %w", p.topic, err)
	}
	p.sent.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", p.topic),
		observability.L("outcome", outcome),
	)
	p.latency.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", p.topic),
	)
	return err
}

// State exposes the breaker state for health reporting.
func (p *Producer) State() string {
	return p.breaker.State().String()
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
