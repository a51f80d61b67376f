package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/application/checkout"
	domcart "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-marketplace/app/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability"
	"github.com/Zhima-Mochi/minishop-marketplace/app/internal/observability/logctx"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Available   *int   `json:"available,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorKind(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeErrorKind(w, http.StatusBadRequest, "validation", err)
}

// classify maps an application error to its HTTP status and stable kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, application.ErrPersistence):
		return http.StatusInternalServerError, "persistence"
	case errors.Is(err, domcart.ErrItemNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, checkout.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, checkout.ErrProductUnavailable):
		return http.StatusBadRequest, "product_unavailable"
	case errors.Is(err, checkout.ErrOrderNumberExhausted):
		return http.StatusConflict, "order_number_exhausted"
	case errors.Is(err, domorder.ErrInvalidActor):
		return http.StatusForbidden, "invalid_actor"
	case errors.Is(err, domorder.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domorder.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domorder.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, application.ErrValidation):
		return http.StatusBadRequest, "validation"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	body := errorResponse{Error: err.Error(), Kind: kind}

	var le *checkout.LineError
	if errors.As(err, &le) {
		available := le.Available
		body.ProductID = le.ProductID
		body.ProductName = le.ProductName
		body.Available = &available
	}

	if status >= http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("request_failed",
			observability.F("kind", kind),
			observability.Err(err),
		)
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}
