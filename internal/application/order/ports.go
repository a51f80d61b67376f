package order

import (
	"context"
)

// EventSink forwards serialized order events to a downstream broker.
// Key keeps every event of one order on the same partition.
type EventSink interface {
	Send(ctx context.Context, key string, payload []byte) error
}
