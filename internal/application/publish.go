package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
)

const (
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Publish hands e to pub without letting a slow or failing bus fail the caller.
// The returned error is for logging only.
func (p Probe) Publish(ctx context.Context, pub domoutbox.Publisher, e domoutbox.Event) error {
	if pub == nil || e == nil {
		return nil
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	started := time.Now()
	outcome := "success"
	err := pub.Publish(pubCtx, e)
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	p.External(publishPeer, e.EventName(), outcome, started)
	return err
}
