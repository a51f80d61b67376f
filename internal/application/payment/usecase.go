package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	paymentService        = "payment-service"
	useCasePaymentConfirm = "payment.confirm"
	useCasePaymentRefund  = "payment.refund"
)

type ConfirmInput struct {
	OrderID       string
	Actor         domorder.Actor
	Paid          bool
	TransactionID string
	Gateway       string
}

type RefundInput struct {
	OrderID string
	Actor   domorder.Actor
}

// updater holds what both payment use cases share: a party-checked load and a
// compare-and-set save that leaves the lifecycle status untouched.
type updater struct {
	orders    domorder.Repository
	publisher domoutbox.Publisher
	now       func() time.Time
	probe     application.Probe
}

func newUpdater(orders domorder.Repository, publisher domoutbox.Publisher, tel observability.Observability) updater {
	return updater{
		orders:    orders,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		probe:     application.NewProbe(tel, paymentService),
	}
}

// apply loads the order, runs fn and persists the result when fn reports a change.
func (u updater) apply(ctx context.Context, run *application.Run, orderID string, actor domorder.Actor,
	fn func(o *domorder.Order) (bool, error),
) (*domorder.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	o, err := u.orders.Get(ctx, orderID)
	switch {
	case errors.Is(err, domorder.ErrNotFound):
		run.Fail("ORDER_NOT_FOUND")
		return nil, err
	case err != nil:
		run.Fail("ORDER_LOAD_FAILED")
		return nil, application.WrapPersistence(err)
	}
	if !o.IsParty(actor) {
		run.Fail("ACTOR_NOT_ALLOWED")
		return nil, fmt.Errorf("%w: not a party to order %s", domorder.ErrInvalidActor, o.Number)
	}

	status, from := o.Status, o.PaymentStatus
	changed, err := fn(o)
	if err != nil {
		run.Fail("PAYMENT_TRANSITION_REJECTED")
		return nil, err
	}
	if !changed {
		run.Status = "NO_CHANGE"
		return o, nil
	}
	if err := u.orders.Update(ctx, o, status); err != nil {
		if errors.Is(err, domorder.ErrConflict) {
			run.Fail("STATUS_CONFLICT")
			return nil, err
		}
		run.Fail("ORDER_UPDATE_FAILED")
		return nil, application.WrapPersistence(err)
	}
	run.Field("payment_status", string(o.PaymentStatus))

	if perr := u.probe.Publish(ctx, u.publisher, domorder.NewPaymentStatusChangedEvent(o, from)); perr != nil {
		run.Field("event_publish_error", perr.Error())
	}
	return o, nil
}

// ConfirmUseCase records a gateway outcome for orders not paid in cash.
type ConfirmUseCase struct {
	updater
}

var _ application.UseCase[ConfirmInput, *domorder.Order] = (*ConfirmUseCase)(nil)

func NewConfirmUseCase(orders domorder.Repository, publisher domoutbox.Publisher, tel observability.Observability) *ConfirmUseCase {
	return &ConfirmUseCase{updater: newUpdater(orders, publisher, tel)}
}

func (uc *ConfirmUseCase) Execute(ctx context.Context, in ConfirmInput) (_ *domorder.Order, err error) {
	ctx, run := uc.probe.Begin(ctx, useCasePaymentConfirm, "ConfirmPayment",
		attribute.String("order.id", in.OrderID),
		attribute.Bool("payment.paid", in.Paid),
		attribute.String("payment.gateway", in.Gateway),
	)
	defer func() { run.End(err) }()

	return uc.apply(ctx, run, in.OrderID, in.Actor, func(o *domorder.Order) (bool, error) {
		if o.PaymentMethod.SettledOnDelivery() {
			return false, application.NewValidation("cash on delivery orders are settled on delivery")
		}
		if in.Paid && strings.TrimSpace(in.TransactionID) == "" {
			return false, application.NewValidation("transaction id is required for a paid confirmation")
		}
		return o.RecordPayment(in.Paid, strings.TrimSpace(in.TransactionID), strings.TrimSpace(in.Gateway), uc.now())
	})
}

// RefundUseCase marks the payment of a cancelled or rejected order as refunded.
type RefundUseCase struct {
	updater
}

var _ application.UseCase[RefundInput, *domorder.Order] = (*RefundUseCase)(nil)

func NewRefundUseCase(orders domorder.Repository, publisher domoutbox.Publisher, tel observability.Observability) *RefundUseCase {
	return &RefundUseCase{updater: newUpdater(orders, publisher, tel)}
}

func (uc *RefundUseCase) Execute(ctx context.Context, in RefundInput) (_ *domorder.Order, err error) {
	ctx, run := uc.probe.Begin(ctx, useCasePaymentRefund, "RefundPayment",
		attribute.String("order.id", in.OrderID),
	)
	defer func() { run.End(err) }()

	return uc.apply(ctx, run, in.OrderID, in.Actor, func(o *domorder.Order) (bool, error) {
		return o.Refund(uc.now())
	})
}
