package outbox

import "context"

// Event is a named fact one bounded context announces to the others.
type Event interface {
	EventName() string
}

// Keyed events name the aggregate they belong to. Brokers partition on the key
// so every event of one aggregate stays in order.
type Keyed interface {
	Event
	AggregateID() string
}

// KeyOf returns the aggregate key of e, or false for events that carry none.
func KeyOf(e Event) (string, bool) {
	k, ok := e.(Keyed)
	if !ok || k.AggregateID() == "" {
		return "", false
	}
	return k.AggregateID(), true
}

type Handler func(ctx context.Context, e Event) error

// Publisher hands events to the bus. Publish must not block on subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
