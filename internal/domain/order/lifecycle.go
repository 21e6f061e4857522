package order

import (
	"context"
	"time"
)

// Lifecycle applies administrative status transitions. It is the only writer
// of an order's status after creation; the transition table is enforced here,
// not left to callers.
type Lifecycle struct {
	repo Repository
	now  func() time.Time
}

// NewLifecycle creates a Lifecycle backed by the given repository.
func NewLifecycle(repo Repository) *Lifecycle {
	return &Lifecycle{repo: repo, now: time.Now}
}

// Advance moves the order to the target status, appending one timeline entry.
// An out-of-table request returns InvalidTransitionError and leaves the order
// unchanged.
func (l *Lifecycle) Advance(ctx context.Context, orderID string, to Status, description string) (*Order, error) {
	o, err := l.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	entry, err := Transition(o, to, description, l.now())
	if err != nil {
		return nil, err
	}

	return l.repo.UpdateStatus(ctx, o.ID, to, entry)
}
