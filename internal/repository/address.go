package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdantlabs/checkout/internal/domain/address"
)

const (
	// Ownership is part of the WHERE clause: a foreign address behaves exactly
	// like a missing one.
	getAddressForUserSQL = `SELECT id, user_id, name, phone, line1, line2, area, city, postcode
		FROM addresses WHERE id = $1 AND user_id = $2`

	upsertAddressSQL = `INSERT INTO addresses
		(id, user_id, name, phone, line1, line2, area, city, postcode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			line1 = EXCLUDED.line1,
			line2 = EXCLUDED.line2,
			area = EXCLUDED.area,
			city = EXCLUDED.city,
			postcode = EXCLUDED.postcode`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// FindForUser returns the address only when it belongs to the given user.
func (r *AddressRepository) FindForUser(ctx context.Context, userID, addressID string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressForUserSQL, addressID, userID)
	if err != nil {
		return nil, fmt.Errorf("finding address %q: %w", addressID, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("finding address %q: %w", addressID, err)
	}
	return &a, nil
}

// Upsert inserts or updates a saved address. The owning user never changes.
func (r *AddressRepository) Upsert(ctx context.Context, a *address.Address) error {
	_, err := r.pool.Exec(ctx, upsertAddressSQL,
		a.ID, a.UserID, a.Name, a.Phone, a.Line1, a.Line2, a.Area, a.City, a.Postcode,
	)
	if err != nil {
		return fmt.Errorf("upserting address %q: %w", a.ID, err)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Line1, &a.Line2,
		&a.Area, &a.City, &a.Postcode)
	return a, err
}
