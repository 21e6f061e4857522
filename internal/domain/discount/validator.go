package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator answers "is this code usable for this cart right now, and for how
// much?". It never mutates the usage ledger; recording a redemption is a
// separate Repository.ConsumeUsage call made by the checkout flow.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate looks up the code and checks every eligibility rule against the
// cart, returning a Quote with the computed amount on success.
func (v *Validator) Validate(ctx context.Context, code string, cartTotal decimal.Decimal, items []Item) (*Quote, error) {
	d, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup discount")
	}

	if err := Eligible(d, v.now(), cartTotal, items); err != nil {
		return nil, err
	}

	amount, err := Amount(d, cartTotal)
	if err != nil {
		return nil, err
	}

	return &Quote{
		DiscountID: d.ID,
		Code:       d.Code,
		Type:       d.Type,
		Amount:     amount,
	}, nil
}

// Eligible checks every rule that can reject a code before any amount is
// computed: active flag, validity window, usage limit, minimum purchase, and
// product/category restrictions.
func Eligible(d *Discount, now time.Time, cartTotal decimal.Decimal, items []Item) error {
	if !d.Active {
		return ErrInactive
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return ErrExpired
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return ErrExpired
	}
	if d.UsageLimit > 0 && d.UsageCount >= d.UsageLimit {
		return ErrUsageExhausted
	}
	if d.MinPurchase.IsPositive() && cartTotal.LessThan(d.MinPurchase) {
		return ErrMinPurchase
	}
	if !matchesRestrictions(d, items) {
		return ErrNotApplicable
	}
	return nil
}

// Amount computes the discount amount for the given cart total. Percentage
// amounts are clamped to MaxDiscount when set; every amount is clamped to
// [0, cartTotal] so a total can never go negative.
func Amount(d *Discount, cartTotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch d.Type {
	case TypePercentage:
		amount = cartTotal.Mul(d.Value).Div(hundred)
		if d.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, d.MaxDiscount)
		}
	case TypeFixed:
		amount = d.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", d.Type)
	}

	amount = decimal.Min(amount, cartTotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), nil
}

// matchesRestrictions reports whether the cart satisfies the discount's
// product/category restriction sets. Empty sets mean unrestricted; when any
// set is non-empty, at least one cart item must match one of them.
func matchesRestrictions(d *Discount, items []Item) bool {
	if len(d.ApplicableProducts) == 0 && len(d.ApplicableCategories) == 0 {
		return true
	}

	products := make(map[string]struct{}, len(d.ApplicableProducts))
	for _, id := range d.ApplicableProducts {
		products[id] = struct{}{}
	}
	categories := make(map[string]struct{}, len(d.ApplicableCategories))
	for _, c := range d.ApplicableCategories {
		categories[c] = struct{}{}
	}

	for _, item := range items {
		if _, ok := products[item.ProductID]; ok {
			return true
		}
		if _, ok := categories[item.Category]; ok {
			return true
		}
	}
	return false
}
