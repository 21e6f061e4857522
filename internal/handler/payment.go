package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/address"
	"github.com/verdantlabs/checkout/internal/domain/checkout"
	"github.com/verdantlabs/checkout/internal/domain/payment"
)

type draftItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type orderDataRequest struct {
	Items        []draftItemRequest `json:"items"`
	AddressID    string             `json:"addressId"`
	DiscountCode string             `json:"discountCode,omitempty"`
	Subtotal     decimal.Decimal    `json:"subtotal,omitempty"`
	Shipping     decimal.Decimal    `json:"shipping,omitempty"`
	Total        decimal.Decimal    `json:"total,omitempty"`
}

type paymentDetailsRequest struct {
	Provider      string          `json:"provider"`
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	ReferenceID   string          `json:"refId,omitempty"`
}

type completePaymentRequest struct {
	OrderData      orderDataRequest      `json:"orderData"`
	PaymentDetails paymentDetailsRequest `json:"paymentDetails"`
}

type completePaymentResponse struct {
	Success       bool            `json:"success"`
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	Total         decimal.Decimal `json:"total"`
}

// CompletePayment verifies a client-reported payment with its gateway and
// finalizes the order.
func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "")
		return
	}

	var req completePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body", "")
		return
	}

	items := make([]checkout.DraftItem, len(req.OrderData.Items))
	for i, it := range req.OrderData.Items {
		items[i] = checkout.DraftItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	receipt, err := h.checkout.CompletePayment(r.Context(), id.UserID,
		checkout.Draft{
			Items:        items,
			AddressID:    req.OrderData.AddressID,
			DiscountCode: req.OrderData.DiscountCode,
			Subtotal:     req.OrderData.Subtotal,
			Shipping:     req.OrderData.Shipping,
			Total:        req.OrderData.Total,
		},
		checkout.PaymentInfo{
			Provider:      payment.Method(req.PaymentDetails.Provider),
			TransactionID: req.PaymentDetails.TransactionID,
			Amount:        req.PaymentDetails.Amount,
			ReferenceID:   req.PaymentDetails.ReferenceID,
		})
	if err != nil {
		h.writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, completePaymentResponse{
		Success:       true,
		OrderID:       receipt.OrderID,
		OrderNumber:   receipt.OrderNumber,
		Status:        string(receipt.Status),
		PaymentStatus: string(receipt.PaymentStatus),
		Total:         receipt.Total,
	})
}

// writePaymentError maps completion errors onto the wire taxonomy. Persistence
// failures after verification get a distinct DATABASE_ERROR code and a message
// that does not claim the order failed, since money has already moved.
func (h *Handler) writePaymentError(w http.ResponseWriter, err error) {
	var valErr *checkout.ValidationError
	if errors.As(err, &valErr) {
		writeError(w, http.StatusBadRequest, valErr.Msg, "")
		return
	}

	var mismatchErr *checkout.TotalsMismatchError
	if errors.As(err, &mismatchErr) {
		writeError(w, http.StatusBadRequest, mismatchErr.Error(), "")
		return
	}

	if errors.Is(err, checkout.ErrVerificationFailed) {
		writeError(w, http.StatusBadRequest,
			"payment could not be verified, please try again",
			"PAYMENT_VERIFICATION_FAILED")
		return
	}

	if errors.Is(err, address.ErrNotFound) {
		writeError(w, http.StatusNotFound, "address not found", "")
		return
	}

	var persistErr *checkout.PersistenceError
	if errors.As(err, &persistErr) {
		writeError(w, http.StatusInternalServerError,
			"your payment was received and the order is being processed",
			"DATABASE_ERROR")
		return
	}

	h.lg.Error("payment completion failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error", "")
}
