package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_CanCancel(t *testing.T) {
	assert.True(t, Order{Status: OrderStatusNew}.CanCancel())
	assert.False(t, Order{Status: OrderStatusCancelled}.CanCancel())
	assert.False(t, Order{Status: OrderStatusShipped}.CanCancel())
}

func TestOrderStatus_TerminalStates(t *testing.T) {
	assert.NoError(t, OrderStatusNew.CanTransitionTo(OrderStatusShipped))
	assert.ErrorIs(t, OrderStatusShipped.CanTransitionTo(OrderStatusNew), ErrInvalidTransition)
	assert.ErrorIs(t, OrderStatusCancelled.CanTransitionTo(OrderStatusShipped), ErrInvalidTransition)
	assert.ErrorIs(t, OrderStatusNew.CanTransitionTo(OrderStatus("LOST")), ErrInvalidArgument)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "required", "a": "too long"}}
	assert.Equal(t, "validation failed: a: too long, b: required", err.Error())
}
