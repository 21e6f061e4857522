// Package shipping resolves shipping charges from the authoritative rate
// table. Client-submitted shipping amounts are never trusted.
package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoRate is returned when no rate is configured for a delivery area.
var ErrNoRate = errors.New("no shipping rate for area")

// Rates resolves the shipping charge for a delivery area.
type Rates interface {
	// Lookup returns the flat shipping charge for the given area, falling
	// back to the configured default area ("*") when present.
	Lookup(ctx context.Context, area string) (decimal.Decimal, error)
}
