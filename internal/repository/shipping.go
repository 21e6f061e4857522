package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/checkout/internal/domain/shipping"
)

const (
	// The '*' row is the default rate for areas without an explicit entry.
	getShippingRateSQL = `SELECT rate FROM shipping_rates
		WHERE area = LOWER($1) OR area = '*'
		ORDER BY (area = '*') ASC
		LIMIT 1`

	upsertShippingRateSQL = `INSERT INTO shipping_rates (area, rate)
		VALUES (LOWER($1), $2)
		ON CONFLICT (area) DO UPDATE SET rate = EXCLUDED.rate`
)

var _ shipping.Rates = (*ShippingRateRepository)(nil)

// ShippingRateRepository resolves shipping charges from the rate table.
type ShippingRateRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRateRepository returns a ShippingRateRepository that uses the
// given pool.
func NewShippingRateRepository(pool *pgxpool.Pool) *ShippingRateRepository {
	return &ShippingRateRepository{pool: pool}
}

// Lookup returns the flat charge for the area, preferring an exact match over
// the '*' default.
func (r *ShippingRateRepository) Lookup(ctx context.Context, area string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, getShippingRateSQL, area).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shipping.ErrNoRate
		}
		return decimal.Zero, fmt.Errorf("looking up shipping rate for %q: %w", area, err)
	}
	return rate, nil
}

// Upsert sets the flat rate for an area. Use area "*" for the default rate.
func (r *ShippingRateRepository) Upsert(ctx context.Context, area string, rate decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, upsertShippingRateSQL, area, rate); err != nil {
		return fmt.Errorf("upserting shipping rate for %q: %w", area, err)
	}
	return nil
}
