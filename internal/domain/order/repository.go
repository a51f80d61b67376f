package order

import "context"

// Filter selects orders for listing. Empty fields do not filter; Limit 0 means no limit.
type Filter struct {
	BuyerID  string
	SellerID string
	Status   Status
	Limit    int
	Offset   int
}

// Repository stores orders. Insert reports ErrConflict on a duplicate id or number.
// Update is a compare-and-set on the status the caller loaded and reports ErrConflict
// when the stored status has moved on.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order, expected Status) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) (orders []*Order, total int, err error)
}
