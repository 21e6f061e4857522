package order

import (
	"fmt"
	"time"
)

// Status is the fulfillment lifecycle state of an order. The set of states is
// closed and transitions are enforced centrally by Transition; callers never
// set the field directly.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	// StatusHandover marks the order as handed over to a courier service.
	StatusHandover  Status = "handover_to_courier"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions is the legal state graph. Delivered and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusHandover, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusHandover:   {StatusDelivered, StatusCancelled},
	StatusDelivered:  nil,
	StatusCancelled:  nil,
}

// InvalidTransitionError reports a status change request outside the
// transition table. The order is left untouched.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from one status to another is allowed
// by the lifecycle table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status change against the lifecycle table and, when
// legal, returns the timeline entry to append. The order itself is not
// mutated here; the repository applies the new status and the entry in one
// statement.
func Transition(o *Order, to Status, description string, now time.Time) (TimelineEntry, error) {
	if !ValidStatus(to) {
		return TimelineEntry{}, &InvalidTransitionError{From: o.Status, To: to}
	}
	if !CanTransition(o.Status, to) {
		return TimelineEntry{}, &InvalidTransitionError{From: o.Status, To: to}
	}
	return TimelineEntry{
		Status:      to,
		Date:        now.UTC(),
		Description: description,
	}, nil
}
