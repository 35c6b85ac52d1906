package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	//許可される遷移
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusPaid))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusPaid, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusPaid, OrderStatusRefunded))
	assert.True(t, CanTransition(OrderStatusPaid, OrderStatusShipped))
	assert.True(t, CanTransition(OrderStatusShipped, OrderStatusDelivered))

	//禁止される遷移
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusRefunded))
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusShipped))
	assert.False(t, CanTransition(OrderStatusShipped, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusDelivered, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusCancelled, OrderStatusPaid))
	assert.False(t, CanTransition(OrderStatusCancelled, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusRefunded, OrderStatusRefunded))
	assert.False(t, CanTransition(OrderStatusPaid, OrderStatusPending))
}

func TestOrderStatusHelpers(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())

	assert.True(t, OrderStatusShipped.IsShippedOrLater())
	assert.True(t, OrderStatusDelivered.IsShippedOrLater())
	assert.False(t, OrderStatusPaid.IsShippedOrLater())

	assert.True(t, IsValidOrderStatus("SHIPPED"))
	assert.False(t, IsValidOrderStatus("UNKNOWN"))
}
