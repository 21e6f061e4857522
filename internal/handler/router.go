package handler

import (
	"github.com/go-chi/chi/v5"
)

// Routes mounts the checkout API under /api. Everything except the discount
// quote endpoint requires an authenticated API key; status transitions
// additionally require the admin flag.
func Routes(h *Handler, sec *SecurityHandler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/discounts/validate", h.ValidateDiscount)

		r.Group(func(r chi.Router) {
			r.Use(sec.Middleware)

			r.Post("/payment/complete", h.CompletePayment)
			r.Get("/orders/{orderID}", h.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
			})
		})
	})

	return r
}
