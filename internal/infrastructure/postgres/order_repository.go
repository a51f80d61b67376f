package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository keeps each order as a JSONB document next to the columns it is
// filtered and constrained on.
type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*OrderRepository)(nil)

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", o.ID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO orders (id, order_number, buyer_id, seller_ids, status, total, document, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		o.ID, o.Number, o.BuyerID, o.SellerIDs(), string(o.Status), o.Total.String(), doc, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM orders WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return decodeOrder(doc)
}

// Update writes o only while the stored status still equals expected.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order, expected domain.Status) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", o.ID, err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3, total = $4::numeric, document = $5, updated_at = $6
		 WHERE id = $1 AND status = $2`,
		o.ID, string(expected), string(o.Status), o.Total.String(), doc, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, f domain.Filter) ([]*domain.Order, int, error) {
	where, args := filterClause(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT document FROM orders` + where + ` ORDER BY created_at DESC, order_number DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		o, err := decodeOrder(doc)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func filterClause(f domain.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.BuyerID != "" {
		args = append(args, f.BuyerID)
		conds = append(conds, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if f.SellerID != "" {
		args = append(args, f.SellerID)
		conds = append(conds, fmt.Sprintf("$%d = ANY(seller_ids)", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func decodeOrder(doc []byte) (*domain.Order, error) {
	var o domain.Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}
