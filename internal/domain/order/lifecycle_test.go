package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	order *Order
}

func (m *mockRepo) Create(_ context.Context, o *Order) (*Order, bool, error) {
	return o, true, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Order, error) {
	if m.order == nil || m.order.ID != id {
		return nil, ErrNotFound
	}
	return m.order, nil
}

func (m *mockRepo) FindByTransactionID(_ context.Context, _ string) (*Order, error) {
	return nil, ErrNotFound
}

func (m *mockRepo) UpdateStatus(_ context.Context, _ string, status Status, entry TimelineEntry) (*Order, error) {
	m.order.Status = status
	m.order.Timeline = append(m.order.Timeline, entry)
	return m.order, nil
}

func TestLifecycle_Advance(t *testing.T) {
	repo := &mockRepo{order: &Order{
		ID:     "o1",
		Status: StatusPending,
		Timeline: []TimelineEntry{
			{Status: StatusPending},
		},
	}}
	lc := NewLifecycle(repo)
	lc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	o, err := lc.Advance(context.Background(), "o1", StatusProcessing, "packing")
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, o.Status)
	require.Len(t, o.Timeline, 2)
	assert.Equal(t, StatusProcessing, o.Timeline[1].Status)
	assert.Equal(t, "packing", o.Timeline[1].Description)
}

func TestLifecycle_AdvanceRejectsIllegalTransition(t *testing.T) {
	repo := &mockRepo{order: &Order{
		ID:       "o1",
		Status:   StatusDelivered,
		Timeline: []TimelineEntry{{Status: StatusDelivered}},
	}}
	lc := NewLifecycle(repo)

	_, err := lc.Advance(context.Background(), "o1", StatusProcessing, "")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusDelivered, repo.order.Status)
	assert.Len(t, repo.order.Timeline, 1)
}

func TestLifecycle_AdvanceUnknownOrder(t *testing.T) {
	lc := NewLifecycle(&mockRepo{})

	_, err := lc.Advance(context.Background(), "missing", StatusProcessing, "")
	require.ErrorIs(t, err, ErrNotFound)
}
