package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
)

// CatalogStore is a process-local catalog. Every stock change happens under one mutex,
// which makes ConditionalDecrement atomic.
type CatalogStore struct {
	mu       sync.Mutex
	products map[string]*catalog.Product
}

func NewCatalogStore(products ...*catalog.Product) *CatalogStore {
	s := &CatalogStore{products: make(map[string]*catalog.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p.Clone()
	}
	return s
}

// LoadCatalogFile seeds a store from a JSON array of products.
func LoadCatalogFile(path string) (*CatalogStore, error) {
	products, err := ReadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	s := NewCatalogStore()
	for _, p := range products {
		if err := s.Put(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ReadCatalogFile decodes a JSON array of products without storing them.
func ReadCatalogFile(path string) ([]*catalog.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog seed: read %s: %w", path, err)
	}
	var products []*catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("catalog seed: decode %s: %w", path, err)
	}
	return products, nil
}

// Put inserts or replaces a product.
func (s *CatalogStore) Put(ctx context.Context, p *catalog.Product) error {
	_ = ctx
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *CatalogStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *CatalogStore) ConditionalDecrement(ctx context.Context, id string, qty int) (catalog.Decrement, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Decrement{}, err
	}
	if qty <= 0 {
		return catalog.Decrement{}, catalog.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.Decrement{}, catalog.ErrNotFound
	}
	if p.Stock < qty {
		return catalog.Decrement{Applied: false, CurrentStock: p.Stock}, nil
	}
	p.Stock -= qty
	return catalog.Decrement{Applied: true, CurrentStock: p.Stock}, nil
}

func (s *CatalogStore) IncrementStock(ctx context.Context, id string, qty int) error {
	_ = ctx
	if qty <= 0 {
		return catalog.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.Stock += qty
	return nil
}

// Delete drops a product, as the catalog service would when a seller removes it.
func (s *CatalogStore) Delete(ctx context.Context, id string) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}
