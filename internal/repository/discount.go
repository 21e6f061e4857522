package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/checkout/internal/domain/discount"
)

const (
	getDiscountByCodeSQL = `SELECT id, code, type, value, min_purchase, max_discount,
		usage_limit, usage_count, applicable_products, applicable_categories,
		starts_at, ends_at, active
		FROM discounts WHERE UPPER(code) = UPPER($1)`

	// Check and increment happen in one statement: two concurrent redemptions
	// of a code with one slot left cannot both match the WHERE clause.
	consumeDiscountUsageSQL = `UPDATE discounts
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR usage_count < usage_limit)`

	discountExistsSQL = `SELECT EXISTS(SELECT 1 FROM discounts WHERE id = $1)`

	upsertDiscountSQL = `INSERT INTO discounts
			(id, code, type, value, min_purchase, max_discount, usage_limit, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (UPPER(code)) DO UPDATE SET
				type = EXCLUDED.type,
				value = EXCLUDED.value,
				min_purchase = EXCLUDED.min_purchase,
				max_discount = EXCLUDED.max_discount,
				usage_limit = EXCLUDED.usage_limit,
				active = EXCLUDED.active`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode looks up a discount by its code (case-insensitive).
// Returns discount.ErrNotFound when no such code exists.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	rows, err := r.pool.Query(ctx, getDiscountByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount by code %q: %w", code, err)
	}
	return &d, nil
}

// ConsumeUsage atomically increments the usage counter while it is below the
// limit. A zero-row update against an existing discount means the code is
// exhausted; against a missing one it means not found.
func (r *DiscountRepository) ConsumeUsage(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, consumeDiscountUsageSQL, id)
	if err != nil {
		return fmt.Errorf("consuming usage for discount %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, discountExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking discount %q: %w", id, err)
	}
	if !exists {
		return discount.ErrNotFound
	}
	return discount.ErrUsageExhausted
}

// Upsert inserts or updates a discount definition keyed by code. Existing
// rows keep their id and usage counter.
func (r *DiscountRepository) Upsert(ctx context.Context, d *discount.Discount) error {
	_, err := r.pool.Exec(ctx, upsertDiscountSQL,
		d.ID, d.Code, string(d.Type), d.Value, d.MinPurchase, d.MaxDiscount,
		int32(d.UsageLimit), d.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting discount %q: %w", d.Code, err)
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d          discount.Discount
		dType      string
		usageLimit int32
		usageCount int32
		startsAt   *time.Time
		endsAt     *time.Time
	)
	err := row.Scan(
		&d.ID, &d.Code, &dType, &d.Value, &d.MinPurchase, &d.MaxDiscount,
		&usageLimit, &usageCount, &d.ApplicableProducts, &d.ApplicableCategories,
		&startsAt, &endsAt, &d.Active,
	)
	d.Type = discount.Type(dType)
	d.UsageLimit = int(usageLimit)
	d.UsageCount = int(usageCount)
	d.StartsAt = startsAt
	d.EndsAt = endsAt
	return d, err
}
