package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/checkout/internal/domain/order"
	"github.com/verdantlabs/checkout/internal/domain/payment"
)

// DraftItem is one line of the client-assembled cart. Only the product
// reference and quantity are trusted; prices are recomputed server-side.
type DraftItem struct {
	ProductID string
	Quantity  int
}

// Draft is the client-held description of an intended order, submitted at
// payment completion time. It is advisory input: the orchestrator recomputes
// all totals from server-side data and uses the submitted ones only as a
// tamper check.
type Draft struct {
	Items        []DraftItem
	AddressID    string
	DiscountCode string
	Subtotal     decimal.Decimal
	Shipping     decimal.Decimal
	Total        decimal.Decimal
}

// PaymentInfo carries the client-reported payment completion parameters.
type PaymentInfo struct {
	Provider      payment.Method
	TransactionID string
	Amount        decimal.Decimal
	ReferenceID   string
}

// Receipt is what the caller gets back for display after a completed (or
// idempotently replayed) payment.
type Receipt struct {
	OrderID       string
	OrderNumber   string
	Status        order.Status
	PaymentStatus order.PaymentStatus
	Total         decimal.Decimal
}

// Attempt is the idempotency record written after verification succeeds and
// before order persistence is attempted. If persistence then fails, the
// attempt row is the evidence reconciliation needs to match the stray capture
// to a retroactively created order.
type Attempt struct {
	TransactionID string
	Provider      payment.Method
	UserID        string
	Amount        decimal.Decimal
	ReferenceID   string
	CreatedAt     time.Time
}

// AttemptLog records payment attempts keyed by transaction id.
type AttemptLog interface {
	// Record upserts the attempt; replaying the same transaction id is not
	// an error.
	Record(ctx context.Context, a Attempt) error
	// MarkCompleted links the attempt to the order it produced.
	MarkCompleted(ctx context.Context, transactionID, orderID string) error
	// ListDangling returns attempts older than cutoff with no linked order.
	ListDangling(ctx context.Context, cutoff time.Time) ([]Attempt, error)
}
