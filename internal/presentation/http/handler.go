package httppresentation

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	appcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/cart"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/payment"
	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerUserID         = "X-User-ID"
	headerUserRole       = "X-User-Role"
)

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Cart           *appcart.Service
	Checkout       application.UseCase[checkout.Input, *domorder.Order]
	Transition     application.UseCase[apporder.TransitionInput, *domorder.Order]
	Orders         *apporder.QueryService
	ConfirmPayment application.UseCase[apppayment.ConfirmInput, *domorder.Order]
	RefundPayment  application.UseCase[apppayment.RefundInput, *domorder.Order]

	// Metrics is mounted at /metrics when set.
	Metrics        http.Handler
	HealthChecks   map[string]HealthCheck
	RequestTimeout time.Duration
}

type Handler struct {
	deps Deps
	log  observability.Logger
	tel  observability.Observability
}

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		deps: deps,
		log:  tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:  tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Trace → request logger + metrics → access log → recover → handler
	r.Use(h.withTrace)
	r.Use(ObservabilityMiddleware(h.log, func(r *http.Request) string {
		return r.Header.Get(headerRequestID)
	}, h.tel))
	r.Use(h.withAccessLog)
	r.Use(middleware.Recoverer)
	if h.deps.RequestTimeout > 0 {
		r.Use(middleware.Timeout(h.deps.RequestTimeout))
	}

	r.Get("/health", h.handleHealth)
	if h.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.withActor)

		r.Route("/cart", func(r chi.Router) {
			r.Use(requireRole(domorder.RoleBuyer))
			r.Get("/", h.handleGetCart)
			r.Delete("/", h.handleClearCart)
			r.Get("/count", h.handleCartCount)
			r.Post("/items", h.handleAddCartItem)
			r.Put("/items/{productID}", h.handleUpdateCartItem)
			r.Delete("/items/{productID}", h.handleRemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(requireRole(domorder.RoleBuyer)).Post("/", h.handleCreateOrder)
			r.Get("/", h.handleListOrders)
			r.Get("/stats", h.handleOrderStats)
			r.Get("/{orderID}", h.handleGetOrder)
			r.Post("/{orderID}/status", h.handleTransitionOrder)
			r.Post("/{orderID}/payment/confirm", h.handleConfirmPayment)
			r.Post("/{orderID}/payment/refund", h.handleRefundPayment)
		})
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	code := http.StatusOK

	names := make([]string, 0, len(h.deps.HealthChecks))
	for name := range h.deps.HealthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.deps.HealthChecks[name](ctx)
		cancel()
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, code, resp)
}
