package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allItemStatuses = []ItemStatus{
	ItemPending, ItemConfirmed, ItemProcessing, ItemReadyToShip,
	ItemShipped, ItemDelivered, ItemCancelled, ItemRefunded,
}

func TestItemTransitionTable(t *testing.T) {
	happy := []ItemStatus{ItemPending, ItemConfirmed, ItemProcessing, ItemReadyToShip, ItemShipped, ItemDelivered}
	for i := 0; i < len(happy)-1; i++ {
		assert.True(t, CanTransition(happy[i], happy[i+1]), "%s -> %s", happy[i], happy[i+1])
	}

	// cancelled/refunded reachable from every non-terminal state
	for _, s := range allItemStatuses {
		if s.Terminal() {
			continue
		}
		assert.True(t, CanTransition(s, ItemCancelled), "%s -> cancelled", s)
		assert.True(t, CanTransition(s, ItemRefunded), "%s -> refunded", s)
	}

	// nothing leaves a terminal state
	for _, from := range []ItemStatus{ItemDelivered, ItemCancelled, ItemRefunded} {
		for _, to := range allItemStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s must be invalid", from, to)
		}
	}
}

// every pair outside the table is rejected, exhaustively
func TestItemTransitionTableClosed(t *testing.T) {
	listed := map[[2]ItemStatus]bool{}
	for from, tos := range itemNext {
		for to := range tos {
			listed[[2]ItemStatus{from, to}] = true
		}
	}
	for _, from := range allItemStatuses {
		for _, to := range allItemStatuses {
			if listed[[2]ItemStatus{from, to}] {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	// regressions the table must never allow
	assert.False(t, CanTransition(ItemDelivered, ItemProcessing))
	assert.False(t, CanTransition(ItemShipped, ItemProcessing))
	assert.False(t, CanTransition(ItemPending, ItemShipped))
}

func TestCanBeShipped(t *testing.T) {
	shippable := map[ItemStatus]bool{
		ItemConfirmed:   true,
		ItemProcessing:  true,
		ItemReadyToShip: true,
	}
	for _, s := range allItemStatuses {
		assert.Equal(t, shippable[s], CanBeShipped(s), "status %s", s)
	}
}

func TestItemStatusValid(t *testing.T) {
	for _, s := range allItemStatuses {
		require.True(t, s.Valid())
	}
	require.False(t, ItemStatus("returned").Valid())
	require.False(t, ItemStatus("").Valid())
}

func TestPayoutTransitionTable(t *testing.T) {
	assert.True(t, CanTransitionPayout(PayoutRequested, PayoutProcessing))
	assert.True(t, CanTransitionPayout(PayoutRequested, PayoutCancelled))
	assert.True(t, CanTransitionPayout(PayoutProcessing, PayoutPaid))
	assert.True(t, CanTransitionPayout(PayoutProcessing, PayoutFailed))
	assert.True(t, CanTransitionPayout(PayoutProcessing, PayoutCancelled))

	assert.False(t, CanTransitionPayout(PayoutRequested, PayoutPaid), "paid only from processing")
	all := []PayoutStatus{PayoutRequested, PayoutProcessing, PayoutPaid, PayoutCancelled, PayoutFailed}
	for _, from := range []PayoutStatus{PayoutPaid, PayoutCancelled, PayoutFailed} {
		for _, to := range all {
			assert.False(t, CanTransitionPayout(from, to), "%s -> %s", from, to)
		}
	}
}
