// Package address provides lookup of a user's saved shipping addresses.
package address

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an address does not exist or does not belong
// to the requesting user. The two cases are deliberately indistinguishable to
// callers.
var ErrNotFound = errors.New("address not found")

// Address is a user's saved shipping address. Orders copy it into an
// immutable snapshot at creation time.
type Address struct {
	ID       string
	UserID   string
	Name     string
	Phone    string
	Line1    string
	Line2    string
	Area     string
	City     string
	Postcode string
}

// Repository provides address lookup scoped to an owning user.
type Repository interface {
	// FindForUser returns the address only when it belongs to the given
	// user; otherwise ErrNotFound. Ownership is part of the query, not a
	// separate check.
	FindForUser(ctx context.Context, userID, addressID string) (*Address, error)
}
