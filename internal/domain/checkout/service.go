// Package checkout implements the payment completion orchestrator: the only
// component allowed to turn a verified gateway payment into a persisted order.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/verdantlabs/checkout/internal/domain/address"
	"github.com/verdantlabs/checkout/internal/domain/discount"
	"github.com/verdantlabs/checkout/internal/domain/order"
	"github.com/verdantlabs/checkout/internal/domain/payment"
	"github.com/verdantlabs/checkout/internal/domain/product"
	"github.com/verdantlabs/checkout/internal/domain/shipping"
)

// Service coordinates payment verification with local persistent state.
type Service struct {
	registry  *payment.Registry
	products  product.Repository
	addresses address.Repository
	shipping  shipping.Rates
	discounts discount.Repository
	orders    order.Repository
	attempts  AttemptLog
	lg        *zap.Logger
	tel       telemetry
	now       func() time.Time
}

// NewService creates the orchestrator with its collaborators.
func NewService(
	registry *payment.Registry,
	products product.Repository,
	addresses address.Repository,
	rates shipping.Rates,
	discounts discount.Repository,
	orders order.Repository,
	attempts AttemptLog,
	lg *zap.Logger,
) *Service {
	return &Service{
		registry:  registry,
		products:  products,
		addresses: addresses,
		shipping:  rates,
		discounts: discounts,
		orders:    orders,
		attempts:  attempts,
		lg:        lg,
		tel:       newTelemetry(),
		now:       time.Now,
	}
}

// persistTimeout bounds the write phase after a verified capture, which runs
// detached from the caller's context.
const persistTimeout = 15 * time.Second

// pricing is the server-side recomputation of the draft's money fields.
type pricing struct {
	items    []order.Item
	subtotal decimal.Decimal
	shipping decimal.Decimal
	quote    *discount.Quote
	total    decimal.Decimal
}

// CompletePayment accepts a client-reported payment completion, verifies it
// with the gateway, and atomically materializes an order on success.
//
// Once verification has started the flow runs to completion regardless of the
// caller's context state for the write phase: the provider side-effect cannot
// be cancelled from this side, so abandoning mid-flight would only widen the
// capture-then-fail gap.
func (s *Service) CompletePayment(ctx context.Context, userID string, draft Draft, pay PaymentInfo) (*Receipt, error) {
	ctx, span := s.tel.tracer.Start(ctx, "checkout.CompletePayment")
	defer span.End()

	if err := validateDraft(draft, pay); err != nil {
		return nil, err
	}
	if !s.registry.Supported(pay.Provider) {
		return nil, validationf("unsupported payment provider %q", pay.Provider)
	}

	// Duplicate submission: the same gateway transaction must never produce
	// a second order. A replay returns the first order's identifiers.
	if existing, err := s.orders.FindByTransactionID(ctx, pay.TransactionID); err == nil {
		if existing.UserID != userID {
			return nil, validationf("transaction %s already used", pay.TransactionID)
		}
		return receiptFrom(existing), nil
	} else if !errors.Is(err, order.ErrNotFound) {
		return nil, errors.Wrap(err, "idempotency lookup")
	}

	// Address resolution doubles as the authorization check: the query is
	// scoped to the caller, so a foreign address is simply not found. It runs
	// before verification because the authoritative amount depends on the
	// shipping rate for the resolved area.
	addr, err := s.addresses.FindForUser(ctx, userID, draft.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrap(err, "resolve address")
	}

	priced, err := s.priceDraft(ctx, draft, addr.Area)
	if err != nil {
		return nil, err
	}
	if err := tamperCheck(draft, priced); err != nil {
		return nil, err
	}

	verifier, err := s.registry.Lookup(pay.Provider)
	if err != nil {
		return nil, validationf("unsupported payment provider %q", pay.Provider)
	}

	result, err := verifier.Verify(ctx, payment.Request{
		TransactionID:  pay.TransactionID,
		ExpectedAmount: priced.total,
		ReferenceID:    pay.ReferenceID,
	})
	if err != nil {
		// Transport-level uncertainty is fail-closed: treated as rejection,
		// never retried here.
		s.lg.Warn("gateway verification errored",
			zap.String("provider", string(pay.Provider)),
			zap.String("transaction_id", pay.TransactionID),
			zap.Error(err))
		s.tel.rejected.Add(ctx, 1, providerAttr(string(pay.Provider)))
		return nil, ErrVerificationFailed
	}
	if !result.Verified {
		s.lg.Info("gateway rejected payment",
			zap.String("provider", string(pay.Provider)),
			zap.String("transaction_id", pay.TransactionID),
			zap.String("provider_status", result.ProviderStatus))
		s.tel.rejected.Add(ctx, 1, providerAttr(string(pay.Provider)))
		return nil, ErrVerificationFailed
	}

	// From here on money has been captured at the provider. Every failure is
	// a PersistenceError so alerting and reconciliation can tell it apart
	// from ordinary server errors. The write phase runs on a context detached
	// from the caller: a client disconnect while the gateway call was in
	// flight must not cancel persistence of a captured payment. The attempt
	// row goes in first: if the order insert fails, it is the breadcrumb
	// reconciliation follows.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	now := s.now().UTC()
	if err := s.attempts.Record(persistCtx, Attempt{
		TransactionID: pay.TransactionID,
		Provider:      pay.Provider,
		UserID:        userID,
		Amount:        result.Amount,
		ReferenceID:   pay.ReferenceID,
		CreatedAt:     now,
	}); err != nil {
		return nil, s.persistenceFailure(persistCtx, pay, errors.Wrap(err, "record attempt"))
	}

	o := s.buildOrder(userID, addr, priced, pay, result, now)

	existing, created, err := s.orders.Create(persistCtx, o)
	if err != nil {
		return nil, s.persistenceFailure(persistCtx, pay, errors.Wrap(err, "create order"))
	}
	if !created {
		// Lost the race against a concurrent replay of the same transaction.
		return receiptFrom(existing), nil
	}

	if err := s.attempts.MarkCompleted(persistCtx, pay.TransactionID, o.ID); err != nil {
		s.lg.Error("marking payment attempt completed failed",
			zap.String("transaction_id", pay.TransactionID),
			zap.String("order_id", o.ID),
			zap.Error(err))
	}

	s.applyDiscountUsage(persistCtx, o)

	s.tel.completed.Add(persistCtx, 1, providerAttr(string(pay.Provider)))
	return receiptFrom(o), nil
}

// priceDraft recomputes the authoritative totals for the draft: catalog
// prices for the subtotal, the rate table for shipping, and the discount
// ledger for the discount amount.
func (s *Service) priceDraft(ctx context.Context, draft Draft, area string) (*pricing, error) {
	ids := make([]string, len(draft.Items))
	for i, item := range draft.Items {
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]order.Item, len(draft.Items))
	discountItems := make([]discount.Item, len(draft.Items))
	subtotal := decimal.Zero
	for i, line := range draft.Items {
		p, ok := byID[line.ProductID]
		if !ok {
			return nil, validationf("product %s not found", line.ProductID)
		}

		items[i] = order.Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
			Image:     p.ImageURL,
		}
		discountItems[i] = discount.Item{
			ProductID: p.ID,
			Category:  p.Category,
			Price:     p.Price,
			Quantity:  line.Quantity,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shippingCharge, err := s.shipping.Lookup(ctx, area)
	if err != nil {
		if errors.Is(err, shipping.ErrNoRate) {
			return nil, validationf("no shipping rate for area %q", area)
		}
		return nil, errors.Wrap(err, "lookup shipping rate")
	}

	var quote *discount.Quote
	if draft.DiscountCode != "" {
		validator := discount.NewValidator(s.discounts)
		quote, err = validator.Validate(ctx, draft.DiscountCode, subtotal, discountItems)
		if err != nil {
			switch {
			case errors.Is(err, discount.ErrNotFound),
				errors.Is(err, discount.ErrInactive),
				errors.Is(err, discount.ErrExpired),
				errors.Is(err, discount.ErrUsageExhausted),
				errors.Is(err, discount.ErrMinPurchase),
				errors.Is(err, discount.ErrNotApplicable):
				return nil, validationf("discount code %q: %v", draft.DiscountCode, err)
			default:
				return nil, errors.Wrap(err, "validate discount")
			}
		}
	}

	total := subtotal.Add(shippingCharge)
	if quote != nil {
		total = total.Sub(quote.Amount)
	}
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &pricing{
		items:    items,
		subtotal: subtotal,
		shipping: shippingCharge,
		quote:    quote,
		total:    total.Round(2),
	}, nil
}

func (s *Service) buildOrder(userID string, addr *address.Address, priced *pricing, pay PaymentInfo, result *payment.Result, now time.Time) *order.Order {
	var applied *order.AppliedDiscount
	if priced.quote != nil {
		applied = &order.AppliedDiscount{
			DiscountID: priced.quote.DiscountID,
			Code:       priced.quote.Code,
			Amount:     priced.quote.Amount,
		}
	}

	return &order.Order{
		ID:     uuid.New().String(),
		Number: order.NewNumber(now),
		UserID: userID,
		Items:  priced.items,
		Address: order.Address{
			Name:     addr.Name,
			Phone:    addr.Phone,
			Line1:    addr.Line1,
			Line2:    addr.Line2,
			Area:     addr.Area,
			City:     addr.City,
			Postcode: addr.Postcode,
		},
		Subtotal:      priced.subtotal,
		Shipping:      priced.shipping,
		Discount:      applied,
		Total:         priced.total,
		PaymentMethod: pay.Provider,
		PaymentStatus: order.PaymentPaid,
		PaymentDetails: order.PaymentDetails{
			TransactionID:  result.TransactionID,
			Provider:       result.Provider,
			Amount:         result.Amount,
			Currency:       result.Currency,
			ProviderStatus: result.ProviderStatus,
			ReferenceID:    result.ReferenceID,
		},
		Status: order.StatusPending,
		Timeline: []order.TimelineEntry{{
			Status:      order.StatusPending,
			Date:        now,
			Description: "Order placed",
		}},
		CreatedAt: now,
	}
}

// applyDiscountUsage records the redemption after the order is persisted.
// Failure never rolls the order back; it is logged on its own channel so
// over-redemption can be told apart from order-creation failure.
func (s *Service) applyDiscountUsage(ctx context.Context, o *order.Order) {
	if o.Discount == nil {
		return
	}

	err := s.discounts.ConsumeUsage(ctx, o.Discount.DiscountID)
	switch {
	case err == nil:
	case errors.Is(err, discount.ErrUsageExhausted):
		s.lg.Warn("discount redeemed past its usage limit",
			zap.String("discount_id", o.Discount.DiscountID),
			zap.String("code", o.Discount.Code),
			zap.String("order_id", o.ID))
	default:
		s.lg.Error("discount usage accounting failed",
			zap.String("discount_id", o.Discount.DiscountID),
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
}

func (s *Service) persistenceFailure(ctx context.Context, pay PaymentInfo, err error) error {
	s.lg.Error("verified payment could not be persisted",
		zap.String("transaction_id", pay.TransactionID),
		zap.Error(err))
	s.tel.persistFailures.Add(ctx, 1, providerAttr(string(pay.Provider)))
	return &PersistenceError{TransactionID: pay.TransactionID, Err: err}
}

func validateDraft(draft Draft, pay PaymentInfo) error {
	if len(draft.Items) == 0 {
		return validationf("order has no items")
	}
	for _, item := range draft.Items {
		if item.Quantity <= 0 {
			return validationf("quantity must be greater than 0 for product %s", item.ProductID)
		}
	}
	if draft.AddressID == "" {
		return validationf("shipping address is required")
	}
	if pay.Provider == "" {
		return validationf("payment provider is required")
	}
	if pay.TransactionID == "" {
		return validationf("payment transaction id is required")
	}
	return nil
}

// tamperCheck compares the client-submitted totals against the server-side
// recomputation. The client numbers are never used for anything else.
func tamperCheck(draft Draft, priced *pricing) error {
	if !draft.Total.IsZero() && !draft.Total.Equal(priced.total) {
		return &TotalsMismatchError{Field: "total", Client: draft.Total, Server: priced.total}
	}
	if !draft.Subtotal.IsZero() && !draft.Subtotal.Equal(priced.subtotal) {
		return &TotalsMismatchError{Field: "subtotal", Client: draft.Subtotal, Server: priced.subtotal}
	}
	if !draft.Shipping.IsZero() && !draft.Shipping.Equal(priced.shipping) {
		return &TotalsMismatchError{Field: "shipping", Client: draft.Shipping, Server: priced.shipping}
	}
	return nil
}

func receiptFrom(o *order.Order) *Receipt {
	return &Receipt{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
	}
}
