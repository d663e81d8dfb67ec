package settlement

import "github.com/shopspring/decimal"

// CommissionCents applies a commission rate to a gross amount.
// Single rounding rule for the whole ledger: multiply in decimal, round
// half-up to integer cents. Every place a rate meets an amount goes through
// here so conservation holds exactly.
func CommissionCents(grossCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(grossCents).Mul(rate).Round(0).IntPart()
}

// SplitEarning returns commission and net for a gross amount at the given rate.
func SplitEarning(grossCents int64, rate decimal.Decimal) (commissionCents, netCents int64) {
	commissionCents = CommissionCents(grossCents, rate)
	return commissionCents, grossCents - commissionCents
}
