package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessagesAreActionable(t *testing.T) {
	stockErr := &InsufficientStockError{VariantID: "v1", Requested: 3, Available: 1}
	assert.Contains(t, stockErr.Error(), "v1")
	assert.Contains(t, stockErr.Error(), "requested 3")
	assert.Contains(t, stockErr.Error(), "available 1")

	transErr := &InvalidTransitionError{From: ItemDelivered, To: ItemProcessing}
	assert.Equal(t, "invalid transition delivered -> processing", transErr.Error())

	balErr := &InsufficientBalanceError{AvailableCents: 5000, RequestedCents: 6000}
	assert.Contains(t, balErr.Error(), "6000")
	assert.Contains(t, balErr.Error(), "5000")

	minErr := &BelowMinimumError{MinimumCents: 1000, RequestedCents: 500}
	assert.Contains(t, minErr.Error(), "500")
	assert.Contains(t, minErr.Error(), "1000")
}
