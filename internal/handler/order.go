package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/order"
)

type timelineEntryResponse struct {
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
}

type appliedDiscountResponse struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

type orderResponse struct {
	OrderID       string                   `json:"orderId"`
	OrderNumber   string                   `json:"orderNumber"`
	Items         []order.Item             `json:"items"`
	Address       order.Address            `json:"address"`
	Subtotal      decimal.Decimal          `json:"subtotal"`
	Shipping      decimal.Decimal          `json:"shipping"`
	Discount      *appliedDiscountResponse `json:"discount,omitempty"`
	Total         decimal.Decimal          `json:"total"`
	PaymentStatus string                   `json:"paymentStatus"`
	Status        string                   `json:"status"`
	Timeline      []timelineEntryResponse  `json:"timeline"`
	CreatedAt     time.Time                `json:"createdAt"`
}

func orderToResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		Items:         o.Items,
		Address:       o.Address,
		Subtotal:      o.Subtotal,
		Shipping:      o.Shipping,
		Total:         o.Total,
		PaymentStatus: string(o.PaymentStatus),
		Status:        string(o.Status),
		Timeline:      make([]timelineEntryResponse, len(o.Timeline)),
		CreatedAt:     o.CreatedAt,
	}
	for i, e := range o.Timeline {
		resp.Timeline[i] = timelineEntryResponse{
			Status:      string(e.Status),
			Date:        e.Date,
			Description: e.Description,
		}
	}
	if o.Discount != nil {
		resp.Discount = &appliedDiscountResponse{
			Code:   o.Discount.Code,
			Amount: o.Discount.Amount,
		}
	}
	return resp
}

// GetOrder returns a single order owned by the caller.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	o, err := h.checkout.GetOrder(r.Context(), id.UserID, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found", "")
			return
		}
		h.lg.Error("order lookup failed", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	writeJSON(w, http.StatusOK, orderToResponse(o))
}

type updateStatusRequest struct {
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// UpdateOrderStatus applies an administrative fulfillment transition. Illegal
// transitions are rejected without touching the order.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}

	to := order.Status(req.Status)
	if !order.ValidStatus(to) {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status, "")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	o, err := h.lifecycle.Advance(r.Context(), orderID, to, req.Description)
	if err != nil {
		var transErr *order.InvalidTransitionError
		switch {
		case errors.As(err, &transErr):
			writeError(w, http.StatusBadRequest, transErr.Error(), "INVALID_TRANSITION")
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found", "")
		default:
			h.lg.Error("status transition failed", zap.String("order_id", orderID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, orderToResponse(o))
}
