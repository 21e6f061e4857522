// Package handler exposes the checkout domain over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/checkout"
	"github.com/verdantlabs/checkout/internal/domain/discount"
	"github.com/verdantlabs/checkout/internal/domain/order"
)

var errUnauthorized = errors.New("unauthorized")

// Handler serves the checkout API, delegating business logic to the domain
// services.
type Handler struct {
	checkout  *checkout.Service
	lifecycle *order.Lifecycle
	discounts discount.Repository
	lg        *zap.Logger
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	checkoutService *checkout.Service,
	lifecycle *order.Lifecycle,
	discounts discount.Repository,
	lg *zap.Logger,
) *Handler {
	return &Handler{
		checkout:  checkoutService,
		lifecycle: lifecycle,
		discounts: discounts,
		lg:        lg,
	}
}

// errorResponse is the wire shape of every non-2xx response. The Code field
// carries machine-readable categories like PAYMENT_VERIFICATION_FAILED that
// clients and alerting branch on.
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"error,omitempty"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message, Code: code})
}
