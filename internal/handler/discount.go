package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/discount"
)

type cartItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type validateDiscountRequest struct {
	Code      string            `json:"code"`
	CartTotal decimal.Decimal   `json:"cartTotal"`
	CartItems []cartItemRequest `json:"cartItems"`
}

type discountDetails struct {
	Code        string          `json:"code"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Amount      decimal.Decimal `json:"amount"`
	MaxDiscount decimal.Decimal `json:"maxDiscount"`
	MinPurchase decimal.Decimal `json:"minPurchase"`
	UsageLimit  int             `json:"usageLimit,omitempty"`
	UsageCount  int             `json:"usageCount,omitempty"`
}

type validateDiscountResponse struct {
	Valid    bool             `json:"valid"`
	Message  string           `json:"message,omitempty"`
	Discount *discountDetails `json:"discount,omitempty"`
}

// ValidateDiscount quotes a discount code against the submitted cart without
// consuming usage.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	var req validateDiscountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "discount code is required", "")
		return
	}

	d, err := h.discounts.FindByCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, discount.ErrNotFound) {
			writeJSON(w, http.StatusOK, validateDiscountResponse{
				Valid:   false,
				Message: "discount code not found",
			})
			return
		}
		h.lg.Error("discount lookup failed", zap.String("code", req.Code), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	items := make([]discount.Item, len(req.CartItems))
	for i, it := range req.CartItems {
		items[i] = discount.Item{
			ProductID: it.ProductID,
			Price:     it.Price,
			Quantity:  it.Quantity,
		}
	}

	if err := discount.Eligible(d, time.Now(), req.CartTotal, items); err != nil {
		writeJSON(w, http.StatusOK, validateDiscountResponse{
			Valid:   false,
			Message: rejectionMessage(err, d),
		})
		return
	}

	amount, err := discount.Amount(d, req.CartTotal)
	if err != nil {
		writeJSON(w, http.StatusOK, validateDiscountResponse{
			Valid:   false,
			Message: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, validateDiscountResponse{
		Valid: true,
		Discount: &discountDetails{
			Code:        d.Code,
			Type:        string(d.Type),
			Value:       d.Value,
			Amount:      amount,
			MaxDiscount: d.MaxDiscount,
			MinPurchase: d.MinPurchase,
			UsageLimit:  d.UsageLimit,
			UsageCount:  d.UsageCount,
		},
	})
}

// rejectionMessage turns eligibility errors into actionable client messages.
func rejectionMessage(err error, d *discount.Discount) string {
	switch {
	case errors.Is(err, discount.ErrInactive):
		return "this discount code is no longer active"
	case errors.Is(err, discount.ErrExpired):
		return "this discount code has expired"
	case errors.Is(err, discount.ErrUsageExhausted):
		return "this discount code has reached its usage limit"
	case errors.Is(err, discount.ErrMinPurchase):
		return "minimum purchase of " + d.MinPurchase.StringFixed(2) + " required for this code"
	case errors.Is(err, discount.ErrNotApplicable):
		return "this discount code does not apply to the items in your cart"
	default:
		return err.Error()
	}
}
