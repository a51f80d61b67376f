package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	domcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	cartService = "cart-service"

	useCaseCartGet     = "cart.get"
	useCaseCartAdd     = "cart.add_item"
	useCaseCartUpdate  = "cart.update_item"
	useCaseCartRemove  = "cart.remove_item"
	useCaseCartClear   = "cart.clear"
	useCaseCartSummary = "cart.summary"

	IssueNoLongerAvailable = "no_longer_available"
	IssueInsufficientStock = "insufficient_stock"
)

var ErrProductUnavailable = catalog.ErrUnavailable

// Service owns cart mutations. Carts are created lazily on first write.
type Service struct {
	carts   domcart.Repository
	catalog catalog.Store
	probe   application.Probe
}

func NewService(carts domcart.Repository, store catalog.Store, tel observability.Observability) *Service {
	return &Service{
		carts:   carts,
		catalog: store,
		probe:   application.NewProbe(tel, cartService),
	}
}

// Get returns the buyer's cart, or an empty unsaved one.
func (s *Service) Get(ctx context.Context, buyerID string) (_ *domcart.Cart, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseCartGet, "GetCart", attribute.String("cart.buyer_id", buyerID))
	defer func() { run.End(err) }()

	if buyerID == "" {
		run.Fail("BUYER_ID_REQUIRED")
		return nil, application.NewValidation("buyer id is required")
	}
	c, err := s.load(ctx, buyerID)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, err
	}
	return c, nil
}

// AddItem adds qty of an active product, merging with an existing line.
// Stock is not checked here; checkout is authoritative.
func (s *Service) AddItem(ctx context.Context, buyerID, productID string, qty int) (_ *domcart.Cart, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseCartAdd, "AddCartItem",
		attribute.String("cart.buyer_id", buyerID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", qty),
	)
	defer func() { run.End(err) }()

	if buyerID == "" {
		run.Fail("BUYER_ID_REQUIRED")
		return nil, application.NewValidation("buyer id is required")
	}
	if qty < 1 {
		run.Fail("QUANTITY_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, domcart.ErrInvalidQuantity)
	}

	p, err := s.catalog.GetProduct(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		run.Fail("PRODUCT_NOT_FOUND")
		return nil, fmt.Errorf("%w: product %q is no longer available", ErrProductUnavailable, productID)
	case err != nil:
		run.Fail("CATALOG_LOOKUP_FAILED")
		return nil, application.WrapPersistence(err)
	case !p.Available():
		run.Fail("PRODUCT_UNAVAILABLE")
		return nil, fmt.Errorf("%w: product %q is no longer available", ErrProductUnavailable, p.Name)
	}

	return s.mutate(ctx, run, buyerID, func(c *domcart.Cart) error {
		return c.AddItem(productID, qty)
	})
}

// UpdateItem sets a line quantity; qty <= 0 removes the line.
func (s *Service) UpdateItem(ctx context.Context, buyerID, productID string, qty int) (_ *domcart.Cart, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseCartUpdate, "UpdateCartItem",
		attribute.String("cart.buyer_id", buyerID),
		attribute.String("product.id", productID),
		attribute.Int("cart.quantity", qty),
	)
	defer func() { run.End(err) }()

	if buyerID == "" {
		run.Fail("BUYER_ID_REQUIRED")
		return nil, application.NewValidation("buyer id is required")
	}
	return s.mutate(ctx, run, buyerID, func(c *domcart.Cart) error {
		return c.UpdateItem(productID, qty)
	})
}

func (s *Service) RemoveItem(ctx context.Context, buyerID, productID string) (_ *domcart.Cart, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseCartRemove, "RemoveCartItem",
		attribute.String("cart.buyer_id", buyerID),
		attribute.String("product.id", productID),
	)
	defer func() { run.End(err) }()

	if buyerID == "" {
		run.Fail("BUYER_ID_REQUIRED")
		return nil, application.NewValidation("buyer id is required")
	}
	return s.mutate(ctx, run, buyerID, func(c *domcart.Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, buyerID string) (_ *domcart.Cart, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseCartClear, "ClearCart", attribute.String("cart.buyer_id", buyerID))
	defer func() { run.End(err) }()

	if buyerID == "" {
		run.Fail("BUYER_ID_REQUIRED")
		return nil, application.NewValidation("buyer id is required")
	}
	return s.mutate(ctx, run, buyerID, func(c *domcart.Cart) error {
		c.Clear()
		return nil
	})
}

// Count is the total quantity across lines.
func (s *Service) Count(ctx context.Context, buyerID string) (int, error) {
	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return 0, err
	}
	return c.TotalItems(), nil
}

type SummaryLine struct {
	ProductID    string
	ProductName  string
	ProductImage string
	Unit         string
	Quantity     int
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
	SellerID     string
	SellerName   string
	Stock        int
	Available    bool
	Issue        string
	AddedAt      time.Time
}

// Summary is an advisory view priced at live catalog values. Checkout never reads it.
type Summary struct {
	BuyerID    string
	Items      []SummaryLine
	TotalItems int
	TotalValue decimal.Decimal
	UpdatedAt  time.Time
}

func (s *Service) Summary(ctx context.Context, buyerID string) (_ *Summary, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseCartSummary, "CartSummary", attribute.String("cart.buyer_id", buyerID))
	defer func() { run.End(err) }()

	if buyerID == "" {
		run.Fail("BUYER_ID_REQUIRED")
		return nil, application.NewValidation("buyer id is required")
	}
	c, err := s.load(ctx, buyerID)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, err
	}

	out := &Summary{
		BuyerID:    c.BuyerID,
		Items:      make([]SummaryLine, 0, len(c.Items)),
		TotalItems: c.TotalItems(),
		TotalValue: decimal.Zero,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, it := range c.Items {
		line := SummaryLine{ProductID: it.ProductID, Quantity: it.Quantity, AddedAt: it.AddedAt}

		p, gerr := s.catalog.GetProduct(ctx, it.ProductID)
		switch {
		case errors.Is(gerr, catalog.ErrNotFound):
			line.Issue = IssueNoLongerAvailable
			out.Items = append(out.Items, line)
			continue
		case gerr != nil:
			run.Fail("CATALOG_LOOKUP_FAILED")
			return nil, application.WrapPersistence(gerr)
		}

		line.ProductName = p.Name
		line.ProductImage = p.PrimaryImage()
		line.Unit = p.UnitOrDefault()
		line.UnitPrice = p.Price
		line.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		line.SellerID = p.SellerID
		line.SellerName = p.SellerName
		line.Stock = p.Stock
		switch {
		case !p.Available():
			line.Issue = IssueNoLongerAvailable
		case p.Stock < it.Quantity:
			line.Issue = IssueInsufficientStock
		default:
			line.Available = true
			out.TotalValue = out.TotalValue.Add(line.LineTotal)
		}
		out.Items = append(out.Items, line)
	}
	run.Field("lines", len(out.Items))
	return out, nil
}

func (s *Service) load(ctx context.Context, buyerID string) (*domcart.Cart, error) {
	c, err := s.carts.Get(ctx, buyerID)
	if errors.Is(err, domcart.ErrNotFound) {
		return domcart.New(buyerID), nil
	}
	if err != nil {
		return nil, application.WrapPersistence(err)
	}
	return c, nil
}

func (s *Service) mutate(ctx context.Context, run *application.Run, buyerID string, fn func(*domcart.Cart) error) (*domcart.Cart, error) {
	c, err := s.load(ctx, buyerID)
	if err != nil {
		run.Fail("CART_LOAD_FAILED")
		return nil, err
	}
	if err := fn(c); err != nil {
		run.Fail("CART_MUTATION_REJECTED")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}
	if err := s.carts.Save(ctx, c); err != nil {
		run.Fail("CART_SAVE_FAILED")
		return nil, application.WrapPersistence(err)
	}
	run.Field("cart_items", c.TotalItems())
	return c, nil
}
