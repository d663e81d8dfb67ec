package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func availableEarnings(nets ...int64) []VendorEarning {
	out := make([]VendorEarning, 0, len(nets))
	for i, n := range nets {
		out = append(out, VendorEarning{
			ID:             string(rune('a' + i)),
			Status:         EarningAvailable,
			NetAmountCents: n,
		})
	}
	return out
}

func TestPlanEarmarkExactCover(t *testing.T) {
	plan, err := planEarmark(availableEarnings(2000, 3000), 5000)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plan.ClaimIDs)
	assert.Nil(t, plan.Split)
	assert.Equal(t, int64(5000), plan.CoveredCents)
}

func TestPlanEarmarkSplitsBoundaryRow(t *testing.T) {
	plan, err := planEarmark(availableEarnings(2000, 3000), 3500)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, plan.ClaimIDs)
	require.NotNil(t, plan.Split)
	assert.Equal(t, "b", plan.Split.EarningID)
	assert.Equal(t, int64(1500), plan.Split.ClaimNetCents)
	assert.Equal(t, int64(1500), plan.Split.RemainderNetCents)
	assert.Equal(t, int64(3500), plan.CoveredCents)
}

func TestPlanEarmarkSingleRowSplit(t *testing.T) {
	plan, err := planEarmark(availableEarnings(9000), 3000)
	require.NoError(t, err)
	assert.Empty(t, plan.ClaimIDs)
	require.NotNil(t, plan.Split)
	assert.Equal(t, int64(3000), plan.Split.ClaimNetCents)
	assert.Equal(t, int64(6000), plan.Split.RemainderNetCents)
}

func TestPlanEarmarkInsufficient(t *testing.T) {
	_, err := planEarmark(availableEarnings(2000, 2000), 5000)
	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, int64(4000), balErr.AvailableCents)
	assert.Equal(t, int64(5000), balErr.RequestedCents)
}

func TestPlanEarmarkNoFunds(t *testing.T) {
	_, err := planEarmark(nil, 1000)
	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, int64(0), balErr.AvailableCents)
}

// claimed + split always equals the requested amount; the remainder stays
// behind, so nothing is created or destroyed by planning
func TestPlanEarmarkConserves(t *testing.T) {
	nets := []int64{100, 2500, 999, 42, 7000}
	var total int64
	for _, n := range nets {
		total += n
	}
	for amount := int64(100); amount <= total; amount += 317 {
		plan, err := planEarmark(availableEarnings(nets...), amount)
		require.NoError(t, err, "amount=%d", amount)
		require.Equal(t, amount, plan.CoveredCents, "amount=%d", amount)

		claimed := map[string]bool{}
		for _, id := range plan.ClaimIDs {
			claimed[id] = true
		}
		var sum int64
		for _, e := range availableEarnings(nets...) {
			if claimed[e.ID] {
				sum += e.NetAmountCents
			}
		}
		if plan.Split != nil {
			sum += plan.Split.ClaimNetCents
		}
		require.Equal(t, amount, sum, "amount=%d", amount)
	}
}
