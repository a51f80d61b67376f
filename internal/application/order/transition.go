package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService           = "order-service"
	useCaseOrderTransition = "order.transition"
	useCaseStockRestore    = "order.restore_stock"
)

var (
	ErrNotFound          = domain.ErrNotFound
	ErrConflict          = domain.ErrConflict
	ErrInvalidActor      = domain.ErrInvalidActor
	ErrInvalidTransition = domain.ErrInvalidTransition
)

type TransitionInput struct {
	OrderID string
	Actor   domain.Actor
	Target  string
	Reason  string
}

// TransitionUseCase moves an order through its lifecycle and returns stock when an
// order is cancelled or rejected.
type TransitionUseCase struct {
	orders    domain.Repository
	catalog   catalog.Store
	publisher domoutbox.Publisher
	now       func() time.Time
	probe     application.Probe
}

var _ application.UseCase[TransitionInput, *domain.Order] = (*TransitionUseCase)(nil)

func NewTransitionUseCase(
	orders domain.Repository,
	store catalog.Store,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *TransitionUseCase {
	return &TransitionUseCase{
		orders:    orders,
		catalog:   store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		probe:     application.NewProbe(tel, orderService),
	}
}

// Execute applies the requested status. Requesting the current status is a no-op.
func (uc *TransitionUseCase) Execute(ctx context.Context, in TransitionInput) (_ *domain.Order, err error) {
	ctx, run := uc.probe.Begin(ctx, useCaseOrderTransition, "TransitionOrder",
		attribute.String("order.id", in.OrderID),
		attribute.String("order.target_status", in.Target),
		attribute.String("actor.role", string(in.Actor.Role)),
	)
	defer func() { run.End(err) }()

	if strings.TrimSpace(in.OrderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	if strings.TrimSpace(in.Actor.ID) == "" {
		run.Fail("ACTOR_REQUIRED")
		return nil, fmt.Errorf("%w: actor id is required", ErrInvalidActor)
	}
	target, err := domain.ParseStatus(in.Target)
	if err != nil {
		run.Fail("STATUS_UNKNOWN")
		return nil, application.NewValidation("status %q is not recognised", in.Target)
	}
	run.Field("order_id", in.OrderID)
	run.Field("target_status", string(target))

	o, err := uc.load(ctx, in.OrderID)
	if err != nil {
		run.Fail(loadStatus(err))
		return nil, err
	}
	from := o.Status
	fromPayment := o.PaymentStatus

	changed, err := o.Transition(target, in.Actor, in.Reason, uc.now())
	if err != nil {
		if errors.Is(err, ErrInvalidActor) {
			run.Fail("ACTOR_NOT_ALLOWED")
		} else {
			run.Fail("TRANSITION_NOT_ALLOWED")
		}
		return nil, err
	}
	if !changed {
		run.Status = "NO_CHANGE"
		return o, nil
	}

	if err := uc.orders.Update(ctx, o, from); err != nil {
		if !errors.Is(err, ErrConflict) {
			run.Fail("ORDER_UPDATE_FAILED")
			return nil, application.WrapPersistence(err)
		}
		// someone else moved the order first
		current, lerr := uc.load(ctx, in.OrderID)
		if lerr != nil {
			run.Fail(loadStatus(lerr))
			return nil, lerr
		}
		if current.Status == target {
			run.Status = "NO_CHANGE"
			return current, nil
		}
		run.Fail("STATUS_CONFLICT")
		return nil, fmt.Errorf("%w: order %s moved to %s", ErrConflict, current.Number, current.Status)
	}
	run.Field("from_status", string(from))

	var restoreErr error
	if target.ReleasesStock() {
		restoreErr = uc.restoreStock(ctx, run.Log, o)
	}

	if perr := uc.probe.Publish(ctx, uc.publisher, domain.NewStatusChangedEvent(o, from, in.Actor)); perr != nil {
		run.Field("event_publish_error", perr.Error())
	}
	if o.PaymentStatus != fromPayment {
		if perr := uc.probe.Publish(ctx, uc.publisher, domain.NewPaymentStatusChangedEvent(o, fromPayment)); perr != nil {
			run.Field("payment_event_publish_error", perr.Error())
		}
	}

	run.Span().AddEvent("order.status_changed", trace.WithAttributes(
		attribute.String("order.from", string(from)),
		attribute.String("order.to", string(target)),
	))

	if restoreErr != nil {
		run.Fail("STOCK_RESTORE_FAILED")
		return o, restoreErr
	}
	return o, nil
}

// restoreStock returns every line's quantity to the catalog. Products that no longer
// exist are skipped; any other failure is reported once all lines were attempted.
func (uc *TransitionUseCase) restoreStock(ctx context.Context, logger observability.Logger, o *domain.Order) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for _, li := range o.Items {
		err := uc.catalog.IncrementStock(ctx, li.ProductID, li.Quantity)
		switch {
		case err == nil:
			uc.probe.Compensation(useCaseStockRestore, "success")
		case errors.Is(err, catalog.ErrNotFound):
			uc.probe.Compensation(useCaseStockRestore, "skipped")
			logger.Warn("stock_restore_skipped",
				observability.F("order_id", o.ID),
				observability.F("product_id", li.ProductID),
				observability.F("quantity", li.Quantity),
			)
		default:
			uc.probe.Compensation(useCaseStockRestore, "error")
			logger.Error("stock_restore_failed",
				observability.F("order_id", o.ID),
				observability.F("product_id", li.ProductID),
				observability.F("quantity", li.Quantity),
				observability.Err(err),
			)
			errs = append(errs, fmt.Errorf("restore %s: %w", li.ProductID, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return application.WrapPersistence(errors.Join(errs...))
}

func (uc *TransitionUseCase) load(ctx context.Context, id string) (*domain.Order, error) {
	o, err := uc.orders.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, application.WrapPersistence(err)
	}
	return o, nil
}

func loadStatus(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "ORDER_NOT_FOUND"
	}
	return "ORDER_LOAD_FAILED"
}
