package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	appcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/payment"
	domcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv     *httptest.Server
	catalog *memory.CatalogStore
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	store := memory.NewCatalogStore(
		&catalog.Product{ID: "apples", Name: "Apples", Unit: "kg", Price: decimal.NewFromInt(50), Stock: 3,
			IsActive: true, Status: catalog.StatusActive, SellerID: "seller-1", SellerName: "Orchard"},
		&catalog.Product{ID: "honey", Name: "Honey", Unit: "jar", Price: decimal.NewFromInt(400), Stock: 1,
			IsActive: true, Status: catalog.StatusActive, SellerID: "seller-2", SellerName: "Hive"},
	)
	carts := memory.NewCartRepository()
	orders := memory.NewOrderRepository()

	h := NewHandler(Deps{
		Cart: appcart.NewService(carts, store, nil),
		Checkout: checkout.NewUseCase(carts, store, orders, nil, nil, checkout.Config{
			Pricing: domorder.Pricing{
				DeliveryFee: decimal.NewFromInt(50),
				TaxRate:     decimal.RequireFromString("0.13"),
			},
			MaxNumberAttempts: 5,
		}, nil),
		Transition:     apporder.NewTransitionUseCase(orders, store, nil, nil),
		Orders:         apporder.NewQueryService(orders, nil),
		ConfirmPayment: apppayment.NewConfirmUseCase(orders, nil, nil),
		RefundPayment:  apppayment.NewRefundUseCase(orders, nil, nil),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		}),
		HealthChecks: checks,
	}, nil)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, catalog: store}
}

type caller struct {
	id   string
	role string
}

var (
	buyer   = caller{"buyer-1", "buyer"}
	seller1 = caller{"seller-1", "seller"}
	seller2 = caller{"seller-2", "seller"}
)

func (ts *testServer) do(t *testing.T, as caller, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	if as.id != "" {
		req.Header.Set(headerUserID, as.id)
		req.Header.Set(headerUserRole, as.role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

var checkoutBody = map[string]any{
	"buyer":              map[string]any{"name": "Sita"},
	"delivery_address":   map[string]any{"street": "Jhamsikhel Rd", "city": "Lalitpur"},
	"payment_method":     "cod",
	"delivery_date":      "2026-11-02",
	"delivery_time_slot": "morning",
}

func TestRouter_CartToDeliveredOrder(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body := ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "apples", "quantity": 3})
	require.Equal(t, http.StatusOK, code, body)
	assert.EqualValues(t, 3, body["total_items"])
	assert.Equal(t, "150", body["total_value"])

	code, body = ts.do(t, buyer, http.MethodGet, "/api/v1/cart/count", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["count"])

	code, order := ts.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutBody)
	require.Equal(t, http.StatusCreated, code, order)
	assert.Equal(t, "150", order["subtotal"])
	assert.Equal(t, "20", order["tax"])
	assert.Equal(t, "220", order["total"])
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "buyer-1", order["buyer_id"])
	orderPath := "/api/v1/orders/" + order["id"].(string)

	p, err := ts.catalog.GetProduct(context.Background(), "apples")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	code, body = ts.do(t, buyer, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])

	for _, target := range []string{"approved", "processing", "shipped", "delivered"} {
		code, body = ts.do(t, seller1, http.MethodPost, orderPath+"/status", map[string]any{"status": target})
		require.Equal(t, http.StatusOK, code, "%s: %v", target, body)
	}
	assert.Equal(t, "delivered", body["status"])
	assert.Equal(t, "paid", body["payment_status"])

	code, body = ts.do(t, buyer, http.MethodPost, orderPath+"/status", map[string]any{"status": "received"})
	require.Equal(t, http.StatusOK, code, body)

	code, body = ts.do(t, buyer, http.MethodGet, "/api/v1/orders?page=1&limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 1)
	assert.EqualValues(t, 1, body["pagination"].(map[string]any)["total"])

	code, body = ts.do(t, seller1, http.MethodGet, "/api/v1/orders/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["completed_orders"], "received, not delivered")
	assert.Equal(t, "220", body["total_revenue"])

	code, body = ts.do(t, seller2, http.MethodGet, orderPath, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "invalid_actor", body["kind"])
}

func TestRouter_CheckoutFailuresCarryLineDetail(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body := ts.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "empty_cart", body["kind"])

	code, _ = ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "apples", "quantity": 1})
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "honey", "quantity": 2})
	require.Equal(t, http.StatusOK, code)

	code, body = ts.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "product_unavailable", body["kind"])
	assert.Equal(t, "honey", body["product_id"])
	assert.Equal(t, "Honey", body["product_name"])
	assert.EqualValues(t, 1, body["available"])

	p, err := ts.catalog.GetProduct(context.Background(), "apples")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	code, body = ts.do(t, buyer, http.MethodPost, "/api/v1/orders", map[string]any{"payment_method": "cod", "delivery_date": "soon"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])
}

func TestRouter_IdentityAndRoles(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body := ts.do(t, caller{}, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["kind"])

	code, _ = ts.do(t, caller{"x", "admin"}, http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(t, seller1, http.MethodGet, "/api/v1/cart", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(t, seller1, http.MethodPost, "/api/v1/orders", checkoutBody)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRouter_CartErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	code, body := ts.do(t, buyer, http.MethodPut, "/api/v1/cart/items/apples", map[string]any{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["kind"])

	code, body = ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "ghost", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "product_unavailable", body["kind"])

	code, body = ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "apples", "quantity": 1, "color": "red"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["kind"])

	code, _ = ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "apples", "quantity": 2})
	require.Equal(t, http.StatusOK, code)
	code, body = ts.do(t, buyer, http.MethodDelete, "/api/v1/cart/items/apples", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["total_items"])
}

func TestRouter_TransitionErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, buyer, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "apples", "quantity": 1})
	_, order := ts.do(t, buyer, http.MethodPost, "/api/v1/orders", checkoutBody)
	orderPath := "/api/v1/orders/" + order["id"].(string)

	code, body := ts.do(t, seller1, http.MethodPost, orderPath+"/status", map[string]any{"status": "shipped"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", body["kind"])

	code, body = ts.do(t, buyer, http.MethodPost, orderPath+"/status", map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "invalid_actor", body["kind"])

	code, body = ts.do(t, buyer, http.MethodPost, "/api/v1/orders/nope/status", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["kind"])

	code, body = ts.do(t, buyer, http.MethodPost, orderPath+"/payment/confirm", map[string]any{"paid": true, "transaction_id": "tx"})
	assert.Equal(t, http.StatusBadRequest, code, "cash on delivery settles on delivery")
	assert.Equal(t, "validation", body["kind"])

	code, body = ts.do(t, buyer, http.MethodPost, orderPath+"/status", map[string]any{"status": "cancelled", "reason": "changed my mind"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "changed my mind", body["cancellation_reason"])

	code, _ = ts.do(t, buyer, http.MethodGet, "/api/v1/orders?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	code, body := ts.do(t, caller{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newTestServer(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	code, body = down.do(t, caller{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{application.NewValidation("bad"), http.StatusBadRequest, "validation"},
		{fmt.Errorf("%w: %w", application.ErrValidation, domcart.ErrItemNotFound), http.StatusNotFound, "not_found"},
		{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{&checkout.LineError{Kind: checkout.ErrProductUnavailable}, http.StatusBadRequest, "product_unavailable"},
		{&checkout.LineError{Kind: checkout.ErrInsufficientStock}, http.StatusConflict, "insufficient_stock"},
		{checkout.ErrOrderNumberExhausted, http.StatusConflict, "order_number_exhausted"},
		{domorder.ErrInvalidActor, http.StatusForbidden, "invalid_actor"},
		{domorder.ErrNotFound, http.StatusNotFound, "not_found"},
		{domorder.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{domorder.ErrConflict, http.StatusConflict, "conflict"},
		{application.WrapPersistence(errors.New("disk")), http.StatusInternalServerError, "persistence"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		code, kind := classify(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.Equal(t, tc.kind, kind, tc.err.Error())
	}
}

func TestWriteDomainError_HidesInternalDetail(t *testing.T) {
	h := NewHandler(Deps{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	h.writeDomainError(rec, req, application.WrapPersistence(errors.New("dial tcp 10.0.0.5:5432")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.Contains(t, rec.Body.String(), `"kind":"persistence"`)
}
