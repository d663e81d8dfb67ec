package settlement

// earmarkSplit describes the boundary earning when a requested amount does
// not align with row boundaries: ClaimNetCents is earmarked, the remainder
// stays available as a new row (amount = net = remainder, zero commission),
// which keeps net = amount - commission true for both halves and the ledger
// sum unchanged.
type earmarkSplit struct {
	EarningID         string
	ClaimNetCents     int64
	RemainderNetCents int64
}

type earmarkPlan struct {
	ClaimIDs     []string // rows claimed whole
	Split        *earmarkSplit
	CoveredCents int64
}

// planEarmark covers amountCents with the given earnings, oldest first.
// The earnings must already be available and un-earmarked; the caller holds
// the row locks. Returns InsufficientBalanceError when the rows cannot
// cover the amount.
func planEarmark(earnings []VendorEarning, amountCents int64) (earmarkPlan, error) {
	var plan earmarkPlan
	remaining := amountCents
	for _, e := range earnings {
		if remaining == 0 {
			break
		}
		if e.NetAmountCents <= remaining {
			plan.ClaimIDs = append(plan.ClaimIDs, e.ID)
			plan.CoveredCents += e.NetAmountCents
			remaining -= e.NetAmountCents
			continue
		}
		plan.Split = &earmarkSplit{
			EarningID:         e.ID,
			ClaimNetCents:     remaining,
			RemainderNetCents: e.NetAmountCents - remaining,
		}
		plan.CoveredCents += remaining
		remaining = 0
	}
	if remaining > 0 {
		var available int64
		for _, e := range earnings {
			available += e.NetAmountCents
		}
		return earmarkPlan{}, &InsufficientBalanceError{AvailableCents: available, RequestedCents: amountCents}
	}
	return plan, nil
}
