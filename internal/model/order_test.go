package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusReadyForPickup, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusConfirmed, OrderStatusReadyForPickup, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusPending, false},
		{OrderStatusReadyForPickup, OrderStatusCompleted, true},
		{OrderStatusReadyForPickup, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusReadyForPickup, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusConfirmed, OrderStatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrderStatusHelpers(t *testing.T) {
	assert.True(t, OrderStatusCompleted.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusReadyForPickup.Terminal())

	assert.True(t, OrderStatusPending.HoldsStock())
	assert.True(t, OrderStatusConfirmed.HoldsStock())
	assert.False(t, OrderStatusReadyForPickup.HoldsStock())

	st, ok := ParseOrderStatus("READY_FOR_PICKUP")
	assert.True(t, ok)
	assert.Equal(t, OrderStatusReadyForPickup, st)
	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)
}
