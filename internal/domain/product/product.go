// Package product exposes the slice of the catalog the checkout core needs:
// authoritative prices and snapshot data for order materialization.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item. Price is the authoritative server-side price;
// client-submitted prices are only ever compared against it.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	ImageURL string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs fetches all requested products in a single batch query.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
