package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*cart.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*cart.Cart)}
}

func (r *CartRepository) Get(ctx context.Context, buyerID string) (*cart.Cart, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[buyerID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	_ = ctx
	if c == nil || c.BuyerID == "" {
		return fmt.Errorf("cart repository: buyer id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[c.BuyerID] = c.Clone()
	return nil
}
