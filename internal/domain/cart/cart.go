package cart

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	ErrNotFound         = errors.New("cart: not found")
	ErrInvalidQuantity  = errors.New("cart: quantity must be at least one")
	ErrProductIDMissing = errors.New("cart: product id is required")
	ErrItemNotFound     = errors.New("cart: item not in cart")
)

type Item struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart holds at most one line per product. It is emptied, never deleted.
type Cart struct {
	BuyerID   string    `json:"buyer_id"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(buyerID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		BuyerID:   buyerID,
		Items:     []Item{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges qty into an existing line or appends a new one.
func (c *Cart) AddItem(productID string, qty int) error {
	if productID == "" {
		return ErrProductIDMissing
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if i := c.indexOf(productID); i >= 0 {
		if qty > math.MaxInt-c.Items[i].Quantity {
			return ErrInvalidQuantity
		}
		c.Items[i].Quantity += qty
	} else {
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty, AddedAt: time.Now().UTC()})
	}
	c.touch()
	return nil
}

// UpdateItem sets the line quantity exactly; qty <= 0 removes the line.
func (c *Cart) UpdateItem(productID string, qty int) error {
	if productID == "" {
		return ErrProductIDMissing
	}
	if qty <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	i := c.indexOf(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = qty
	c.touch()
	return nil
}

func (c *Cart) RemoveItem(productID string) {
	i := c.indexOf(productID)
	if i < 0 {
		return
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch()
}

func (c *Cart) Clear() {
	c.Items = []Item{}
	c.touch()
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// TotalItems is the sum of line quantities.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Items = append([]Item(nil), c.Items...)
	if clone.Items == nil {
		clone.Items = []Item{}
	}
	return &clone
}

func (c *Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Repository persists one cart per buyer. Save is last-write-wins.
type Repository interface {
	Get(ctx context.Context, buyerID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}
