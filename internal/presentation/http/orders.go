package httppresentation

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/payment"
	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/go-chi/chi/v5"
)

type createOrderRequest struct {
	Buyer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"buyer"`
	DeliveryAddress      domorder.Address `json:"delivery_address"`
	PaymentMethod        string           `json:"payment_method"`
	DeliveryDate         string           `json:"delivery_date"`
	DeliveryTimeSlot     string           `json:"delivery_time_slot"`
	DeliveryInstructions string           `json:"delivery_instructions"`
	Notes                string           `json:"notes"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	deliveryDate, err := parseDeliveryDate(req.DeliveryDate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	actor := actorFrom(r.Context())
	o, err := h.deps.Checkout.Execute(r.Context(), checkout.Input{
		Buyer: domorder.Buyer{
			ID:    actor.ID,
			Name:  req.Buyer.Name,
			Email: req.Buyer.Email,
			Phone: req.Buyer.Phone,
		},
		DeliveryAddress:      req.DeliveryAddress,
		PaymentMethod:        req.PaymentMethod,
		DeliveryDate:         deliveryDate,
		DeliveryTimeSlot:     req.DeliveryTimeSlot,
		DeliveryInstructions: req.DeliveryInstructions,
		Notes:                req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// parseDeliveryDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDeliveryDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("delivery_date %q is not a date", s)
}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type listOrdersResponse struct {
	Orders     []*domorder.Order `json:"orders"`
	Pagination pagination        `json:"pagination"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("page: %w", err))
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("limit: %w", err))
		return
	}

	res, err := h.deps.Orders.List(r.Context(), apporder.ListInput{
		Actor:  actorFrom(r.Context()),
		Status: q.Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{
		Orders: res.Orders,
		Pagination: pagination{
			Total: res.Total,
			Page:  res.Page,
			Limit: res.Limit,
			Pages: res.Pages,
		},
	})
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%q is not a non-negative integer", s)
	}
	return n, nil
}

func (h *Handler) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Orders.Stats(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.Orders.Get(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type transitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *Handler) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	o, err := h.deps.Transition.Execute(r.Context(), apporder.TransitionInput{
		OrderID: chi.URLParam(r, "orderID"),
		Actor:   actorFrom(r.Context()),
		Target:  req.Status,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type confirmPaymentRequest struct {
	Paid          bool   `json:"paid"`
	TransactionID string `json:"transaction_id"`
	Gateway       string `json:"gateway"`
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	o, err := h.deps.ConfirmPayment.Execute(r.Context(), apppayment.ConfirmInput{
		OrderID:       chi.URLParam(r, "orderID"),
		Actor:         actorFrom(r.Context()),
		Paid:          req.Paid,
		TransactionID: req.TransactionID,
		Gateway:       req.Gateway,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	o, err := h.deps.RefundPayment.Execute(r.Context(), apppayment.RefundInput{
		OrderID: chi.URLParam(r, "orderID"),
		Actor:   actorFrom(r.Context()),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
