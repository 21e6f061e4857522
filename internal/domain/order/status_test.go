package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusHandover, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusProcessing, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusShipped, StatusProcessing, false},
		{StatusHandover, StatusDelivered, true},
		{StatusHandover, StatusCancelled, true},
		{StatusDelivered, StatusProcessing, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition_AppendsEntry(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	o := &Order{Status: StatusPending}

	entry, err := Transition(o, StatusProcessing, "picking started", now)
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, entry.Status)
	assert.Equal(t, now, entry.Date)
	assert.Equal(t, "picking started", entry.Description)
}

func TestTransition_TerminalStateRejected(t *testing.T) {
	o := &Order{
		Status: StatusDelivered,
		Timeline: []TimelineEntry{
			{Status: StatusPending},
			{Status: StatusProcessing},
			{Status: StatusShipped},
			{Status: StatusDelivered},
		},
	}

	_, err := Transition(o, StatusProcessing, "", time.Now())

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusDelivered, itErr.From)
	assert.Equal(t, StatusProcessing, itErr.To)

	// The order itself must be untouched by a rejected transition.
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Len(t, o.Timeline, 4)
}

func TestTransition_UnknownStatus(t *testing.T) {
	o := &Order{Status: StatusPending}

	_, err := Transition(o, Status("returned"), "", time.Now())

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestNewNumber(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	a := NewNumber(now)
	b := NewNumber(now)

	assert.Regexp(t, `^ORD-20250615-[0-9A-F]{8}$`, a)
	assert.NotEqual(t, a, b)
}
