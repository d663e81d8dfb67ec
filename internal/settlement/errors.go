package settlement

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict means the whole operation should be retried by
	// the caller; nothing was partially applied.
	ErrConcurrencyConflict = errors.New("concurrency conflict, retry the operation")

	// ErrReservationExpired means the hold lapsed or was released before
	// checkout; the buyer must reserve again.
	ErrReservationExpired = errors.New("reservation expired")
)

type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d",
		e.VariantID, e.Requested, e.Available)
}

type InvalidTransitionError struct {
	From ItemStatus
	To   ItemStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

type InvalidPayoutTransitionError struct {
	From PayoutStatus
	To   PayoutStatus
}

func (e *InvalidPayoutTransitionError) Error() string {
	return fmt.Sprintf("invalid payout transition %s -> %s", e.From, e.To)
}

type InsufficientBalanceError struct {
	AvailableCents int64
	RequestedCents int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %d cents, available %d cents",
		e.RequestedCents, e.AvailableCents)
}

type BelowMinimumError struct {
	MinimumCents   int64
	RequestedCents int64
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("payout amount %d cents is below the minimum of %d cents",
		e.RequestedCents, e.MinimumCents)
}

// ReconciliationRequiredError is never auto-resolved; it signals that an
// operator must settle a deficit by hand (the reconciliation row carries the
// details).
type ReconciliationRequiredError struct {
	EarningID    string
	PayoutID     string
	DeficitCents int64
}

func (e *ReconciliationRequiredError) Error() string {
	return fmt.Sprintf("reconciliation required: earning %s already paid (payout %s), deficit %d cents",
		e.EarningID, e.PayoutID, e.DeficitCents)
}
