// Package discount implements the discount code ledger: validating a code
// against a cart and accounting for its redemptions.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage applies a percentage of the cart total, optionally
	// capped by MaxDiscount.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary amount capped at the cart total.
	TypeFixed Type = "fixed"
)

var (
	// ErrNotFound is returned when no discount matches the given code.
	ErrNotFound = errors.New("discount code not found")
	// ErrInactive is returned when the code exists but is switched off.
	ErrInactive = errors.New("discount code is not active")
	// ErrExpired is returned when the current time is outside the code's
	// validity window.
	ErrExpired = errors.New("discount code expired")
	// ErrUsageExhausted is returned when the code has no redemptions left.
	// It is an expected outcome of ConsumeUsage under concurrency, not a
	// storage failure.
	ErrUsageExhausted = errors.New("discount code usage limit reached")
	// ErrMinPurchase is returned when the cart total is below the code's
	// minimum purchase requirement.
	ErrMinPurchase = errors.New("cart total below minimum purchase")
	// ErrNotApplicable is returned when the code restricts eligible products
	// or categories and nothing in the cart matches.
	ErrNotApplicable = errors.New("discount code not applicable to cart items")
)

// Discount is an administrator-owned discount code definition.
type Discount struct {
	ID          string
	Code        string
	Type        Type
	Value       decimal.Decimal
	MinPurchase decimal.Decimal // zero means no minimum
	MaxDiscount decimal.Decimal // caps percentage amounts; zero means uncapped
	// UsageLimit of 0 means unlimited redemptions.
	UsageLimit int
	UsageCount int
	// ApplicableProducts / ApplicableCategories restrict eligibility. Empty
	// sets mean unrestricted; when non-empty at least one cart item must
	// match one of the sets.
	ApplicableProducts   []string
	ApplicableCategories []string
	StartsAt             *time.Time
	EndsAt               *time.Time
	Active               bool
}

// Item is a cart line considered during validation.
type Item struct {
	ProductID string
	Category  string
	Price     decimal.Decimal
	Quantity  int
}

// Quote is the outcome of successfully validating a code against a cart.
type Quote struct {
	DiscountID  string
	Code        string
	Type        Type
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and usage accounting for discount codes.
type Repository interface {
	// FindByCode looks up a discount by code, matching case-insensitively.
	// Returns ErrNotFound when no such code exists.
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// ConsumeUsage atomically increments the usage counter, but only while
	// the counter is below the usage limit (or the limit is unset). When the
	// condition does not hold it returns ErrUsageExhausted. Implementations
	// must perform the check and the increment in a single conditional
	// update, never as a separate read followed by a write.
	ConsumeUsage(ctx context.Context, id string) error
}
