package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/google/uuid"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	checkoutService = "checkout-service"
	useCaseCheckout = "checkout.place_order"

	maxDeliveryInstructions = 500
	maxNotes                = 1000
	unknownBuyerName        = "Unknown User"
	unknownSellerName       = "Unknown Seller"
)

var (
	ErrEmptyCart            = errors.New("checkout: cart is empty")
	ErrProductUnavailable   = catalog.ErrUnavailable
	ErrInsufficientStock    = errors.New("checkout: insufficient stock")
	ErrOrderNumberExhausted = errors.New("checkout: could not allocate a unique order number")
)

const (
	ReasonNoLongerAvailable = "no_longer_available"
	ReasonInsufficientStock = "insufficient_stock"
)

// LineError names the cart line that stopped checkout.
type LineError struct {
	Kind        error
	Reason      string
	ProductID   string
	ProductName string
	Unit        string
	Requested   int
	Available   int
}

func (e *LineError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	if e.Reason == ReasonNoLongerAvailable {
		return fmt.Sprintf("%v: product %q is no longer available", e.Kind, name)
	}
	return fmt.Sprintf("%v: only %d %s available for %q", e.Kind, e.Available, e.Unit, name)
}

func (e *LineError) Unwrap() error { return e.Kind }

type Input struct {
	Buyer                domain.Buyer
	DeliveryAddress      domain.Address
	PaymentMethod        string
	DeliveryDate         *time.Time
	DeliveryTimeSlot     string
	DeliveryInstructions string
	Notes                string
}

type Config struct {
	Pricing           domain.Pricing
	MaxNumberAttempts int
	Now               func() time.Time
}

// UseCase turns a buyer's cart into a pending order. Every check runs before any
// write; once stock moves, each later failure undoes what earlier steps did.
type UseCase struct {
	carts     domcart.Repository
	catalog   catalog.Store
	orders    domain.Repository
	numbers   domain.NumberGenerator
	publisher domoutbox.Publisher
	cfg       Config
	probe     application.Probe
}

var _ application.UseCase[Input, *domain.Order] = (*UseCase)(nil)

func NewUseCase(
	carts domcart.Repository,
	store catalog.Store,
	orders domain.Repository,
	numbers domain.NumberGenerator,
	publisher domoutbox.Publisher,
	cfg Config,
	tel observability.Observability,
) *UseCase {
	if cfg.MaxNumberAttempts < 1 {
		cfg.MaxNumberAttempts = 1
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if numbers == nil {
		numbers = domain.NewNumberGenerator()
	}
	return &UseCase{
		carts:     carts,
		catalog:   store,
		orders:    orders,
		numbers:   numbers,
		publisher: publisher,
		cfg:       cfg,
		probe:     application.NewProbe(tel, checkoutService),
	}
}

// Execute performs the checkout.
func (uc *UseCase) Execute(ctx context.Context, in Input) (_ *domain.Order, err error) {
	ctx, run := uc.probe.Begin(ctx, useCaseCheckout, "Checkout",
		attribute.String("order.buyer_id", in.Buyer.ID),
		attribute.String("order.payment_method", in.PaymentMethod),
	)
	defer func() { run.End(err) }()
	logger := run.Log

	method, slot, err := validate(in)
	if err != nil {
		run.Fail("INPUT_INVALID")
		return nil, err
	}

	c, err := uc.carts.Get(ctx, in.Buyer.ID)
	switch {
	case errors.Is(err, domcart.ErrNotFound):
		run.Fail("EMPTY_CART")
		return nil, ErrEmptyCart
	case err != nil:
		run.Fail("CART_LOAD_FAILED")
		return nil, application.WrapPersistence(err)
	case c.IsEmpty():
		run.Fail("EMPTY_CART")
		return nil, ErrEmptyCart
	}

	lines := make([]domain.LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Quantity < 1 {
			run.Fail("CART_LINE_INVALID")
			return nil, application.NewValidation("cart line %q has invalid quantity %d", it.ProductID, it.Quantity)
		}
		p, gerr := uc.catalog.GetProduct(ctx, it.ProductID)
		switch {
		case errors.Is(gerr, catalog.ErrNotFound):
			run.Fail("PRODUCT_UNAVAILABLE")
			return nil, &LineError{Kind: ErrProductUnavailable, Reason: ReasonNoLongerAvailable, ProductID: it.ProductID, Requested: it.Quantity}
		case gerr != nil:
			run.Fail("CATALOG_LOOKUP_FAILED")
			return nil, application.WrapPersistence(gerr)
		case !p.Available():
			run.Fail("PRODUCT_UNAVAILABLE")
			return nil, &LineError{Kind: ErrProductUnavailable, Reason: ReasonNoLongerAvailable, ProductID: p.ID, ProductName: p.Name, Unit: p.UnitOrDefault(), Requested: it.Quantity}
		case p.Stock < it.Quantity:
			run.Fail("PRODUCT_UNAVAILABLE")
			return nil, &LineError{Kind: ErrProductUnavailable, Reason: ReasonInsufficientStock, ProductID: p.ID, ProductName: p.Name, Unit: p.UnitOrDefault(), Requested: it.Quantity, Available: p.Stock}
		}
		lines = append(lines, snapshot(p, it.Quantity))
	}

	totals := uc.cfg.Pricing.Compute(lines)
	now := uc.cfg.Now()
	o := &domain.Order{
		BuyerID:              in.Buyer.ID,
		Buyer:                buyerSnapshot(in.Buyer),
		Items:                lines,
		Subtotal:             totals.Subtotal,
		DeliveryFee:          totals.DeliveryFee,
		Tax:                  totals.Tax,
		Total:                totals.Total,
		Status:               domain.StatusPending,
		PaymentMethod:        method,
		PaymentStatus:        payment.StatusPending,
		DeliveryAddress:      in.DeliveryAddress.WithDefaults(),
		DeliveryDate:         in.DeliveryDate,
		DeliveryTimeSlot:     slot,
		DeliveryInstructions: strings.TrimSpace(in.DeliveryInstructions),
		Notes:                strings.TrimSpace(in.Notes),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := uc.insertWithNumber(ctx, o, now); err != nil {
		if errors.Is(err, ErrOrderNumberExhausted) {
			run.Fail("ORDER_NUMBER_EXHAUSTED")
		} else {
			run.Fail("ORDER_INSERT_FAILED")
		}
		return nil, err
	}
	run.Field("order_id", o.ID)
	run.Field("order_number", o.Number)

	decremented := make([]domain.LineItem, 0, len(lines))
	for _, li := range lines {
		d, derr := uc.catalog.ConditionalDecrement(ctx, li.ProductID, li.Quantity)
		if derr == nil && d.Applied {
			decremented = append(decremented, li)
			continue
		}

		uc.rollback(ctx, logger, o, decremented)
		if errors.Is(derr, catalog.ErrNotFound) {
			run.Fail("PRODUCT_UNAVAILABLE")
			return nil, &LineError{Kind: ErrProductUnavailable, Reason: ReasonNoLongerAvailable, ProductID: li.ProductID, ProductName: li.ProductName, Unit: li.Unit, Requested: li.Quantity}
		}
		if derr != nil {
			run.Fail("STOCK_DECREMENT_FAILED")
			return nil, application.WrapPersistence(fmt.Errorf("decrement %s: %w", li.ProductID, derr))
		}
		run.Fail("INSUFFICIENT_STOCK")
		return nil, &LineError{
			Kind:        ErrInsufficientStock,
			Reason:      ReasonInsufficientStock,
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			Unit:        li.Unit,
			Requested:   li.Quantity,
			Available:   d.CurrentStock,
		}
	}

	c.Clear()
	if err := uc.carts.Save(ctx, c); err != nil {
		uc.rollback(ctx, logger, o, decremented)
		run.Fail("CART_CLEAR_FAILED")
		return nil, application.WrapPersistence(fmt.Errorf("clear cart: %w", err))
	}

	if perr := uc.probe.Publish(ctx, uc.publisher, domain.NewPlacedEvent(o)); perr != nil {
		run.Status = "EVENT_PUBLISH_FAILED"
		run.Field("event_publish_error", perr.Error())
	}

	run.Span().SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.number", o.Number),
		attribute.String("order.total", o.Total.String()),
	)
	run.Span().AddEvent("order.placed", trace.WithAttributes(attribute.Int("order.lines", len(o.Items))))
	return o, nil
}

// insertWithNumber allocates an order number, retrying on uniqueness conflicts.
func (uc *UseCase) insertWithNumber(ctx context.Context, o *domain.Order, now time.Time) error {
	for attempt := 1; attempt <= uc.cfg.MaxNumberAttempts; attempt++ {
		o.ID = uuid.NewString()
		o.Number = uc.numbers.Next(now)
		err := uc.orders.Insert(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return application.WrapPersistence(err)
		}
	}
	return ErrOrderNumberExhausted
}

// rollback returns every applied decrement and removes the order.
// Failures here are logged; the caller reports the error that triggered the rollback.
func (uc *UseCase) rollback(ctx context.Context, logger observability.Logger, o *domain.Order, decremented []domain.LineItem) {
	ctx = context.WithoutCancel(ctx)
	for i := len(decremented) - 1; i >= 0; i-- {
		li := decremented[i]
		if err := uc.catalog.IncrementStock(ctx, li.ProductID, li.Quantity); err != nil {
			uc.probe.Compensation(useCaseCheckout, "error")
			logger.Error("stock_compensation_failed",
				observability.F("order_id", o.ID),
				observability.F("product_id", li.ProductID),
				observability.F("quantity", li.Quantity),
				observability.Err(err),
			)
			continue
		}
		uc.probe.Compensation(useCaseCheckout, "success")
	}
	if err := uc.orders.Delete(ctx, o.ID); err != nil {
		logger.Error("order_rollback_delete_failed",
			observability.F("order_id", o.ID),
			observability.Err(err),
		)
	}
}

func validate(in Input) (payment.Method, domain.TimeSlot, error) {
	if strings.TrimSpace(in.Buyer.ID) == "" {
		return "", "", application.NewValidation("buyer id is required")
	}
	if strings.TrimSpace(in.DeliveryAddress.Street) == "" {
		return "", "", application.NewValidation("delivery address street is required")
	}
	if strings.TrimSpace(in.DeliveryAddress.City) == "" {
		return "", "", application.NewValidation("delivery address city is required")
	}
	method, err := payment.ParseMethod(in.PaymentMethod)
	if err != nil {
		return "", "", application.NewValidation("payment method %q is not supported", in.PaymentMethod)
	}
	slot, ok := domain.ParseTimeSlot(in.DeliveryTimeSlot)
	if !ok {
		return "", "", application.NewValidation("delivery time slot %q is not supported", in.DeliveryTimeSlot)
	}
	if utf8.RuneCountInString(in.DeliveryInstructions) > maxDeliveryInstructions {
		return "", "", application.NewValidation("delivery instructions exceed %d characters", maxDeliveryInstructions)
	}
	if utf8.RuneCountInString(in.Notes) > maxNotes {
		return "", "", application.NewValidation("notes exceed %d characters", maxNotes)
	}
	return method, slot, nil
}

func snapshot(p *catalog.Product, qty int) domain.LineItem {
	seller := strings.TrimSpace(p.SellerName)
	if seller == "" {
		seller = unknownSellerName
	}
	return domain.NewLineItem(domain.LineItem{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductImage: p.PrimaryImage(),
		Quantity:     qty,
		Unit:         p.UnitOrDefault(),
		UnitPrice:    p.Price,
		SellerID:     p.SellerID,
		SellerName:   seller,
	})
}

func buyerSnapshot(b domain.Buyer) domain.Buyer {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		b.Name = unknownBuyerName
	}
	return b
}
