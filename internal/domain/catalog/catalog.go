package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("catalog: product not found")
	ErrInvalidQuantity = errors.New("catalog: quantity must be greater than zero")
	ErrUnavailable     = errors.New("catalog: product unavailable")
)

const (
	StatusActive = "active"
	DefaultUnit  = "piece"
)

// Product is the catalog's view of a sellable item. Checkout reads it, never writes it
// except through the stock operations on Store.
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	IsActive   bool            `json:"is_active"`
	Status     string          `json:"status"`
	SellerID   string          `json:"seller_id"`
	SellerName string          `json:"seller_name"`
	Images     []string        `json:"images"`
}

// Available reports whether the product may be bought at all, ignoring stock.
func (p *Product) Available() bool {
	return p != nil && p.IsActive && p.Status == StatusActive
}

func (p *Product) UnitOrDefault() string {
	if p.Unit == "" {
		return DefaultUnit
	}
	return p.Unit
}

func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	c.Images = append([]string(nil), p.Images...)
	return &c
}

// Validate checks the invariants a store must hold for a persisted product.
func (p *Product) Validate() error {
	switch {
	case p.ID == "":
		return errors.New("catalog: product id is required")
	case p.Stock < 0:
		return fmt.Errorf("catalog: product %s: stock must not be negative", p.ID)
	case p.Price.IsNegative():
		return fmt.Errorf("catalog: product %s: price must not be negative", p.ID)
	}
	return nil
}

// Decrement is the result of a conditional stock decrement.
type Decrement struct {
	Applied      bool
	CurrentStock int
}

// Store is the catalog collaborator. ConditionalDecrement must be atomic:
// it applies only while stock >= qty and reports the stock it observed otherwise.
type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ConditionalDecrement(ctx context.Context, id string, qty int) (Decrement, error)
	IncrementStock(ctx context.Context, id string, qty int) error
}
