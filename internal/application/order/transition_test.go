package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	buyer   = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}
	sellerA = domain.Actor{ID: "seller-a", Role: domain.RoleSeller}
	sellerB = domain.Actor{ID: "seller-b", Role: domain.RoleSeller}
)

type env struct {
	orders    *memory.OrderRepository
	catalog   *memory.CatalogStore
	publisher *capture
	uc        *apporder.TransitionUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		orders: memory.NewOrderRepository(),
		catalog: memory.NewCatalogStore(
			&catalog.Product{ID: "p1", Name: "Rice", Price: decimal.NewFromInt(10), Stock: 1, IsActive: true, Status: catalog.StatusActive, SellerID: "seller-a"},
			&catalog.Product{ID: "p2", Name: "Lentils", Price: decimal.NewFromInt(20), Stock: 1, IsActive: true, Status: catalog.StatusActive, SellerID: "seller-b"},
		),
		publisher: &capture{},
	}
	e.uc = apporder.NewTransitionUseCase(e.orders, e.catalog, e.publisher, nil)
	return e
}

func (e *env) seed(t *testing.T, status domain.Status, method payment.Method) *domain.Order {
	t.Helper()
	now := time.Now().UTC()
	o := &domain.Order{
		ID:      "o-" + string(status),
		Number:  "TS260101" + string(status),
		BuyerID: buyer.ID,
		Items: []domain.LineItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(10), LineTotal: decimal.NewFromInt(20), SellerID: "seller-a"},
			{ProductID: "p2", Quantity: 3, UnitPrice: decimal.NewFromInt(20), LineTotal: decimal.NewFromInt(60), SellerID: "seller-b"},
		},
		Total:         decimal.NewFromInt(80),
		Status:        status,
		PaymentMethod: method,
		PaymentStatus: payment.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, e.orders.Insert(context.Background(), o))
	return o
}

func (e *env) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := e.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestTransition_SellerWalksHappyPath(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusPending, payment.MethodCOD)
	ctx := context.Background()

	steps := []struct {
		actor  domain.Actor
		target string
		want   domain.Status
	}{
		{sellerA, "approved", domain.StatusConfirmed},
		{sellerB, "processing", domain.StatusProcessing},
		{sellerA, "shipped", domain.StatusShipped},
		{sellerA, "delivered", domain.StatusDelivered},
		{buyer, "received", domain.StatusReceived},
	}
	for _, s := range steps {
		got, err := e.uc.Execute(ctx, apporder.TransitionInput{OrderID: o.ID, Actor: s.actor, Target: s.target})
		require.NoError(t, err, s.target)
		assert.Equal(t, s.want, got.Status)
	}

	stored, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, stored.Status)
	assert.NotNil(t, stored.ConfirmedAt)
	assert.NotNil(t, stored.ReceivedAt)
	assert.Equal(t, payment.StatusPaid, stored.PaymentStatus, "cash on delivery settles on delivery")

	names := e.publisher.names()
	assert.Contains(t, names, domain.EventPaymentStatusChanged)
	assert.Len(t, names, len(steps)+1)
}

func TestTransition_CancelRestoresStockOnce(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusConfirmed, payment.MethodCOD)
	ctx := context.Background()

	got, err := e.uc.Execute(ctx, apporder.TransitionInput{OrderID: o.ID, Actor: buyer, Target: "canceled", Reason: " changed my mind "})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancellationReason)
	assert.Equal(t, 3, e.stock(t, "p1"))
	assert.Equal(t, 4, e.stock(t, "p2"))

	_, err = e.uc.Execute(ctx, apporder.TransitionInput{OrderID: o.ID, Actor: buyer, Target: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, 3, e.stock(t, "p1"), "repeat is a no-op")
}

func TestTransition_RejectRestoresStockAndSkipsMissingProducts(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusPending, payment.MethodKhalti)
	e.catalog.Delete(context.Background(), "p2")

	got, err := e.uc.Execute(context.Background(), apporder.TransitionInput{OrderID: o.ID, Actor: sellerB, Target: "rejected", Reason: "out of season"})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.Status)
	assert.NotNil(t, got.RejectedAt)
	assert.Equal(t, 3, e.stock(t, "p1"))
}

func TestTransition_RestoreFailureIsPersistenceAfterCommit(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusPending, payment.MethodCOD)
	uc := apporder.NewTransitionUseCase(e.orders, &brokenIncrement{CatalogStore: e.catalog, failOn: "p1"}, nil, nil)

	_, err := uc.Execute(context.Background(), apporder.TransitionInput{OrderID: o.ID, Actor: buyer, Target: "cancelled"})

	require.ErrorIs(t, err, application.ErrPersistence)
	stored, gerr := e.orders.Get(context.Background(), o.ID)
	require.NoError(t, gerr)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
	assert.Equal(t, 4, e.stock(t, "p2"), "remaining lines are still restored")
}

func TestTransition_Refusals(t *testing.T) {
	e := newEnv(t)
	pending := e.seed(t, domain.StatusPending, payment.MethodCOD)
	shipped := e.seed(t, domain.StatusShipped, payment.MethodCOD)
	ctx := context.Background()

	tests := []struct {
		name string
		in   apporder.TransitionInput
		want error
	}{
		{"buyer confirms", apporder.TransitionInput{OrderID: pending.ID, Actor: buyer, Target: "confirmed"}, apporder.ErrInvalidActor},
		{"seller cancels", apporder.TransitionInput{OrderID: pending.ID, Actor: sellerA, Target: "cancelled"}, apporder.ErrInvalidActor},
		{"foreign seller", apporder.TransitionInput{OrderID: pending.ID, Actor: domain.Actor{ID: "seller-z", Role: domain.RoleSeller}, Target: "confirmed"}, apporder.ErrInvalidActor},
		{"foreign buyer", apporder.TransitionInput{OrderID: pending.ID, Actor: domain.Actor{ID: "buyer-9", Role: domain.RoleBuyer}, Target: "cancelled"}, apporder.ErrInvalidActor},
		{"skip ahead", apporder.TransitionInput{OrderID: pending.ID, Actor: sellerA, Target: "shipped"}, apporder.ErrInvalidTransition},
		{"cancel after shipping", apporder.TransitionInput{OrderID: shipped.ID, Actor: buyer, Target: "cancelled"}, apporder.ErrInvalidTransition},
		{"unknown status", apporder.TransitionInput{OrderID: pending.ID, Actor: sellerA, Target: "lost"}, application.ErrValidation},
		{"missing order", apporder.TransitionInput{OrderID: "nope", Actor: sellerA, Target: "confirmed"}, apporder.ErrNotFound},
		{"anonymous", apporder.TransitionInput{OrderID: pending.ID, Target: "confirmed"}, apporder.ErrInvalidActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.uc.Execute(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := e.orders.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Empty(t, e.publisher.names())
}

func TestTransition_SameStatusIsNoOp(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusConfirmed, payment.MethodCOD)

	got, err := e.uc.Execute(context.Background(), apporder.TransitionInput{OrderID: o.ID, Actor: sellerA, Target: "confirmed"})

	require.NoError(t, err)
	assert.Nil(t, got.ConfirmedAt)
	assert.Empty(t, e.publisher.names())
}

func TestTransition_ConcurrentCancelAndConfirm(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusPending, payment.MethodCOD)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = e.uc.Execute(ctx, apporder.TransitionInput{OrderID: o.ID, Actor: buyer, Target: "cancelled"})
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = e.uc.Execute(ctx, apporder.TransitionInput{OrderID: o.ID, Actor: sellerA, Target: "rejected"})
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apporder.ErrConflict) || errors.Is(err, apporder.ErrInvalidTransition), err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 3, e.stock(t, "p1"), "stock restored exactly once")
}

func TestTransition_ConflictOnSameTargetIsNoOp(t *testing.T) {
	e := newEnv(t)
	o := e.seed(t, domain.StatusPending, payment.MethodCOD)
	racing := &racingOrders{OrderRepository: e.orders, before: func(ctx context.Context) {
		current, err := e.orders.Get(ctx, o.ID)
		require.NoError(t, err)
		current.Status = domain.StatusConfirmed
		require.NoError(t, e.orders.Update(ctx, current, domain.StatusPending))
	}}
	uc := apporder.NewTransitionUseCase(racing, e.catalog, e.publisher, nil)

	got, err := uc.Execute(context.Background(), apporder.TransitionInput{OrderID: o.ID, Actor: sellerA, Target: "confirmed"})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
	assert.Empty(t, e.publisher.names())
}

type capture struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (c *capture) Publish(_ context.Context, e domoutbox.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capture) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventName())
	}
	return out
}

type brokenIncrement struct {
	*memory.CatalogStore
	failOn string
}

func (b *brokenIncrement) IncrementStock(ctx context.Context, id string, qty int) error {
	if id == b.failOn {
		return errors.New("deadlock detected")
	}
	return b.CatalogStore.IncrementStock(ctx, id, qty)
}

// racingOrders runs before once, right ahead of the first Update.
type racingOrders struct {
	*memory.OrderRepository
	before func(ctx context.Context)
	once   sync.Once
}

func (r *racingOrders) Update(ctx context.Context, o *domain.Order, expected domain.Status) error {
	r.once.Do(func() { r.before(ctx) })
	return r.OrderRepository.Update(ctx, o, expected)
}
