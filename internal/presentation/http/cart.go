package httppresentation

import (
	"net/http"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/cart"
	domcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type cartLineResponse struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	Unit         string          `json:"unit"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	SellerID     string          `json:"seller_id"`
	SellerName   string          `json:"seller_name"`
	Stock        int             `json:"stock"`
	Available    bool            `json:"available"`
	Issue        string          `json:"issue,omitempty"`
	AddedAt      time.Time       `json:"added_at"`
}

type cartResponse struct {
	BuyerID    string             `json:"buyer_id"`
	Items      []cartLineResponse `json:"items"`
	TotalItems int                `json:"total_items"`
	TotalValue decimal.Decimal    `json:"total_value"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func toCartResponse(s *appcart.Summary) cartResponse {
	items := make([]cartLineResponse, 0, len(s.Items))
	for _, l := range s.Items {
		items = append(items, cartLineResponse{
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			Unit:         l.Unit,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			LineTotal:    l.LineTotal,
			SellerID:     l.SellerID,
			SellerName:   l.SellerName,
			Stock:        l.Stock,
			Available:    l.Available,
			Issue:        l.Issue,
			AddedAt:      l.AddedAt,
		})
	}
	return cartResponse{
		BuyerID:    s.BuyerID,
		Items:      items,
		TotalItems: s.TotalItems,
		TotalValue: s.TotalValue,
		UpdatedAt:  s.UpdatedAt,
	}
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, r)
}

func (h *Handler) handleCartCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Cart.Count(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	h.mutateCart(w, r, func(buyerID string) (*domcart.Cart, error) {
		return h.deps.Cart.AddItem(r.Context(), buyerID, req.ProductID, req.Quantity)
	})
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	productID := chi.URLParam(r, "productID")
	h.mutateCart(w, r, func(buyerID string) (*domcart.Cart, error) {
		return h.deps.Cart.UpdateItem(r.Context(), buyerID, productID, req.Quantity)
	})
}

func (h *Handler) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	h.mutateCart(w, r, func(buyerID string) (*domcart.Cart, error) {
		return h.deps.Cart.RemoveItem(r.Context(), buyerID, productID)
	})
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.mutateCart(w, r, func(buyerID string) (*domcart.Cart, error) {
		return h.deps.Cart.Clear(r.Context(), buyerID)
	})
}

// mutateCart applies fn and answers with the repriced cart view.
func (h *Handler) mutateCart(w http.ResponseWriter, r *http.Request, fn func(buyerID string) (*domcart.Cart, error)) {
	if _, err := fn(actorFrom(r.Context()).ID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeCart(w, r)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Cart.Summary(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(summary))
}
