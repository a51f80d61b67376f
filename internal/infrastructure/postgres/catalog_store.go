package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogStore reads products and moves stock with single-statement conditional updates.
type CatalogStore struct {
	pool *pgxpool.Pool
}

var _ catalog.Store = (*CatalogStore)(nil)

func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

const selectProduct = `SELECT id, name, unit, price::text, stock, is_active, status, seller_id, seller_name, images
	FROM products WHERE id = $1`

func (s *CatalogStore) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var (
		p     catalog.Product
		price string
	)
	err := s.pool.QueryRow(ctx, selectProduct, id).Scan(
		&p.ID, &p.Name, &p.Unit, &price, &p.Stock, &p.IsActive, &p.Status, &p.SellerID, &p.SellerName, &p.Images,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product %s: %w", id, err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s: parse price: %w", id, err)
	}
	return &p, nil
}

// ConditionalDecrement subtracts qty only while enough stock remains, in one statement.
func (s *CatalogStore) ConditionalDecrement(ctx context.Context, id string, qty int) (catalog.Decrement, error) {
	if qty <= 0 {
		return catalog.Decrement{}, catalog.ErrInvalidQuantity
	}
	var stock int
	err := s.pool.QueryRow(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2
		 RETURNING stock`,
		id, qty,
	).Scan(&stock)
	if err == nil {
		return catalog.Decrement{Applied: true, CurrentStock: stock}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return catalog.Decrement{}, fmt.Errorf("decrement stock %s: %w", id, err)
	}

	// nothing matched: either the product is gone or stock was short
	err = s.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Decrement{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Decrement{}, fmt.Errorf("read stock %s: %w", id, err)
	}
	return catalog.Decrement{Applied: false, CurrentStock: stock}, nil
}

func (s *CatalogStore) IncrementStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return catalog.ErrInvalidQuantity
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		id, qty,
	)
	if err != nil {
		return fmt.Errorf("increment stock %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Put upserts a product. Used for seeding; the catalog service owns product data.
func (s *CatalogStore) Put(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, name, unit, price, stock, is_active, status, seller_id, seller_name, images)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, unit = EXCLUDED.unit, price = EXCLUDED.price, stock = EXCLUDED.stock,
		   is_active = EXCLUDED.is_active, status = EXCLUDED.status, seller_id = EXCLUDED.seller_id,
		   seller_name = EXCLUDED.seller_name, images = EXCLUDED.images, updated_at = now()`,
		p.ID, p.Name, p.UnitOrDefault(), p.Price.String(), p.Stock, p.IsActive, p.Status, p.SellerID, p.SellerName, images,
	)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}
