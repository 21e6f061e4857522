package checkout

import (
	"context"

	"github.com/verdantlabs/checkout/internal/domain/order"
)

// GetOrder returns an order only when it belongs to the given user. Orders
// are exclusively owned; anyone else sees not-found.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrNotFound
	}
	return o, nil
}
