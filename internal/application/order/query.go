package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	domain "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderGet   = "order.get"
	useCaseOrderList  = "order.list"
	useCaseOrderStats = "order.stats"

	DefaultPageSize = 10
	MaxPageSize     = 100
)

type ListInput struct {
	Actor  domain.Actor
	Status string
	Page   int
	Limit  int
}

type Page struct {
	Orders []*domain.Order
	Total  int
	Page   int
	Limit  int
	Pages  int
}

type Stats struct {
	Total     int             `json:"total_orders"`
	Pending   int             `json:"pending_orders"`
	Completed int             `json:"completed_orders"`
	Revenue   decimal.Decimal `json:"total_revenue"`
}

// QueryService serves read-only views scoped to the calling party.
type QueryService struct {
	orders domain.Repository
	probe  application.Probe
}

func NewQueryService(orders domain.Repository, tel observability.Observability) *QueryService {
	return &QueryService{
		orders: orders,
		probe:  application.NewProbe(tel, orderService),
	}
}

func (s *QueryService) Get(ctx context.Context, actor domain.Actor, orderID string) (_ *domain.Order, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseOrderGet, "GetOrder",
		attribute.String("order.id", orderID),
		attribute.String("actor.role", string(actor.Role)),
	)
	defer func() { run.End(err) }()

	if strings.TrimSpace(orderID) == "" {
		run.Fail("ORDER_ID_REQUIRED")
		return nil, application.NewValidation("order id is required")
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		run.Fail(loadStatus(err))
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, application.WrapPersistence(err)
	}
	if !o.IsParty(actor) {
		run.Fail("ACTOR_NOT_ALLOWED")
		return nil, fmt.Errorf("%w: not a party to order %s", ErrInvalidActor, o.Number)
	}
	return o, nil
}

// List returns the actor's orders, newest first. Page is 1-based.
func (s *QueryService) List(ctx context.Context, in ListInput) (_ *Page, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseOrderList, "ListOrders",
		attribute.String("actor.role", string(in.Actor.Role)),
		attribute.String("order.status_filter", in.Status),
	)
	defer func() { run.End(err) }()

	f, err := scope(in.Actor)
	if err != nil {
		run.Fail("ACTOR_NOT_ALLOWED")
		return nil, err
	}
	if in.Status != "" {
		st, perr := domain.ParseStatus(in.Status)
		if perr != nil {
			run.Fail("STATUS_UNKNOWN")
			return nil, application.NewValidation("status %q is not recognised", in.Status)
		}
		f.Status = st
	}

	page, limit := in.Page, in.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	f.Limit, f.Offset = limit, (page-1)*limit

	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return nil, application.WrapPersistence(err)
	}
	run.Field("total", total)
	return &Page{
		Orders: orders,
		Total:  total,
		Page:   page,
		Limit:  limit,
		Pages:  (total + limit - 1) / limit,
	}, nil
}

// Stats counts the actor's orders. Completed means delivered; revenue also
// includes orders the buyer has marked received.
func (s *QueryService) Stats(ctx context.Context, actor domain.Actor) (_ *Stats, err error) {
	ctx, run := s.probe.Begin(ctx, useCaseOrderStats, "OrderStats",
		attribute.String("actor.role", string(actor.Role)),
	)
	defer func() { run.End(err) }()

	f, err := scope(actor)
	if err != nil {
		run.Fail("ACTOR_NOT_ALLOWED")
		return nil, err
	}
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		run.Fail("ORDER_LIST_FAILED")
		return nil, application.WrapPersistence(err)
	}

	out := &Stats{Total: total, Revenue: decimal.Zero}
	for _, o := range orders {
		switch o.Status {
		case domain.StatusPending:
			out.Pending++
		case domain.StatusDelivered:
			out.Completed++
		}
		if o.Status.EarnsRevenue() {
			out.Revenue = out.Revenue.Add(o.Total)
		}
	}
	return out, nil
}

func scope(actor domain.Actor) (domain.Filter, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return domain.Filter{}, fmt.Errorf("%w: actor id is required", ErrInvalidActor)
	}
	switch actor.Role {
	case domain.RoleBuyer:
		return domain.Filter{BuyerID: actor.ID}, nil
	case domain.RoleSeller:
		return domain.Filter{SellerID: actor.ID}, nil
	}
	return domain.Filter{}, fmt.Errorf("%w: role %q", ErrInvalidActor, actor.Role)
}
