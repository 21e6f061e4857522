// Package order defines the order aggregate: immutable item and address
// snapshots, payment details, and the fulfillment status lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/checkout/internal/domain/payment"
)

// ErrNotFound is returned when a requested order does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("order not found")

// PaymentStatus tracks the money side of an order, independent of fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Item is a line item snapshot taken at order creation time. Later catalog
// changes never alter it.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// Address is a snapshot of the shipping address at order time, copied from
// the user's saved address so later edits do not rewrite order history.
type Address struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	Area     string `json:"area"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
}

// PaymentDetails records the verified gateway transaction that paid for the
// order. TransactionID is the natural deduplication key for order creation.
type PaymentDetails struct {
	TransactionID  string          `json:"transactionId"`
	Provider       payment.Method  `json:"provider"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ProviderStatus string          `json:"status"`
	ReferenceID    string          `json:"referenceId,omitempty"`
}

// AppliedDiscount records the discount consumed by the order, if any.
type AppliedDiscount struct {
	DiscountID string          `json:"discountId"`
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
}

// TimelineEntry is one immutable record of a status change. The timeline is
// append-only; entries are never edited or removed.
type TimelineEntry struct {
	Status      Status    `json:"status"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
}

// Order is created exactly once per successfully verified payment and is
// mutated only by administrative status transitions afterwards.
type Order struct {
	ID             string
	Number         string
	UserID         string
	Items          []Item
	Address        Address
	Subtotal       decimal.Decimal
	Shipping       decimal.Decimal
	Discount       *AppliedDiscount
	Total          decimal.Decimal
	PaymentMethod  payment.Method
	PaymentStatus  PaymentStatus
	PaymentDetails PaymentDetails
	Status         Status
	Timeline       []TimelineEntry
	CreatedAt      time.Time
}

// DiscountAmount returns the applied discount amount, or zero when no
// discount was used.
func (o *Order) DiscountAmount() decimal.Decimal {
	if o.Discount == nil {
		return decimal.Zero
	}
	return o.Discount.Amount
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order. When an order with the same payment
	// transaction id already exists, it returns that order and created=false
	// instead of inserting a duplicate.
	Create(ctx context.Context, o *Order) (existing *Order, created bool, err error)
	// GetByID returns an order by its identifier.
	GetByID(ctx context.Context, id string) (*Order, error)
	// FindByTransactionID returns the order paid for by the given gateway
	// transaction, or ErrNotFound.
	FindByTransactionID(ctx context.Context, transactionID string) (*Order, error)
	// UpdateStatus sets the order's status and appends the timeline entry in
	// a single statement.
	UpdateStatus(ctx context.Context, id string, status Status, entry TimelineEntry) (*Order, error)
}
