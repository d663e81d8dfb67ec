package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerRepo posts vendor earnings, matures them into payable balance and
// records corrections. Rows are never deleted; a reversal is a negative
// correction plus a status flip.
type LedgerRepo struct{ DB *pgxpool.Pool }

const earningColumns = `id, vendor_id, order_id, kind, amount_cents, commission_cents,
	net_amount_cents, status, available_at, COALESCE(payout_id,''), created_at, updated_at`

func scanEarning(row pgx.Row) (VendorEarning, error) {
	var e VendorEarning
	err := row.Scan(&e.ID, &e.VendorID, &e.OrderID, &e.Kind, &e.AmountCents, &e.CommissionCents,
		&e.NetAmountCents, &e.Status, &e.AvailableAt, &e.PayoutID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return VendorEarning{}, ErrNotFound
	}
	return e, err
}

// PostEarning records one earning per (vendor, order). Replays are absorbed
// by the unique index: the existing row is returned with existed=true.
func (r *LedgerRepo) PostEarning(ctx context.Context, vendorID, orderID string, grossCents int64, rate decimal.Decimal, holdPeriod time.Duration) (VendorEarning, bool, error) {
	if grossCents <= 0 {
		return VendorEarning{}, false, fmt.Errorf("invalid gross amount %d", grossCents)
	}
	commission, net := SplitEarning(grossCents, rate)

	row := r.DB.QueryRow(ctx, `
		INSERT INTO vendor_earnings(id, vendor_id, order_id, kind, amount_cents, commission_cents,
			net_amount_cents, status, available_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (vendor_id, order_id) WHERE kind = 'settlement' DO NOTHING
		RETURNING `+earningColumns,
		uuid.NewString(), vendorID, orderID, EarningSettlement, grossCents, commission, net,
		EarningPending, time.Now().UTC().Add(holdPeriod))
	e, err := scanEarning(row)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return VendorEarning{}, false, mapConflict(err)
	}

	// conflict path: the earning was already posted
	e, err = scanEarning(r.DB.QueryRow(ctx, `
		SELECT `+earningColumns+` FROM vendor_earnings
		WHERE vendor_id=$1 AND order_id=$2 AND kind=$3`,
		vendorID, orderID, EarningSettlement))
	if err != nil {
		return VendorEarning{}, false, err
	}
	return e, true, nil
}

// MatureDue flips due pending earnings to available. This is the only path
// that makes funds payout-eligible.
func (r *LedgerRepo) MatureDue(ctx context.Context, now time.Time) (int, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE vendor_earnings SET status=$1, updated_at=now()
		WHERE status=$2 AND available_at <= $3`,
		EarningAvailable, EarningPending, now)
	if err != nil {
		return 0, mapConflict(err)
	}
	return int(ct.RowsAffected()), nil
}

// Balances sums non-reversed net per bucket. Earnings earmarked by an open
// payout (payout_id set) are excluded from available.
func (r *LedgerRepo) Balances(ctx context.Context, vendorID string) (Balances, error) {
	var b Balances
	err := r.DB.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(net_amount_cents) FILTER (WHERE status=$2), 0),
			COALESCE(SUM(net_amount_cents) FILTER (WHERE status=$3 AND payout_id IS NULL), 0),
			COALESCE(SUM(net_amount_cents) FILTER (WHERE status=$4), 0),
			COALESCE(SUM(net_amount_cents) FILTER (WHERE status=$5), 0)
		FROM vendor_earnings WHERE vendor_id=$1`,
		vendorID, EarningPending, EarningAvailable, EarningWithheld, EarningPaid).
		Scan(&b.PendingCents, &b.AvailableCents, &b.WithheldCents, &b.PaidCents)
	return b, err
}

// Reverse records a negative correction and flips the earning to reversed.
// If the money already left through a payout the reversal cannot claw it
// back: a reconciliation row is written and ReconciliationRequiredError is
// returned for the operator queue. Reversing an already reversed earning is
// a no-op.
func (r *LedgerRepo) Reverse(ctx context.Context, earningID, reason string) error {
	if reason == "" {
		return fmt.Errorf("reversal requires a reason")
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	e, err := scanEarning(tx.QueryRow(ctx, `
		SELECT `+earningColumns+` FROM vendor_earnings WHERE id=$1 FOR UPDATE`, earningID))
	if err != nil {
		return mapConflict(err)
	}

	switch {
	case e.Status == EarningReversed:
		return nil
	case e.Status == EarningAvailable && e.PayoutID != "":
		return fmt.Errorf("earning %s is earmarked by payout %s, cancel the payout first", e.ID, e.PayoutID)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO earning_reversals(id, earning_id, amount_cents, reason)
		VALUES ($1,$2,$3,$4)`,
		uuid.NewString(), e.ID, -e.NetAmountCents, reason); err != nil {
		return mapConflict(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE vendor_earnings SET status=$2, updated_at=now() WHERE id=$1`,
		e.ID, EarningReversed); err != nil {
		return mapConflict(err)
	}

	if e.Status == EarningPaid {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconciliations(id, earning_id, payout_id, deficit_cents, reason)
			VALUES ($1,$2,$3,$4,$5)`,
			uuid.NewString(), e.ID, nullable(e.PayoutID), e.NetAmountCents, reason); err != nil {
			return mapConflict(err)
		}
		if err := tx.Commit(ctx); err != nil {
			return mapConflict(err)
		}
		return &ReconciliationRequiredError{EarningID: e.ID, PayoutID: e.PayoutID, DeficitCents: e.NetAmountCents}
	}

	return mapConflict(tx.Commit(ctx))
}

// Withhold parks an available, un-earmarked earning so it no longer counts
// toward the payable balance, without reversing it.
func (r *LedgerRepo) Withhold(ctx context.Context, earningID string) error {
	return r.flip(ctx, earningID, EarningAvailable, EarningWithheld)
}

// Unwithhold returns a withheld earning to available.
func (r *LedgerRepo) Unwithhold(ctx context.Context, earningID string) error {
	return r.flip(ctx, earningID, EarningWithheld, EarningAvailable)
}

func (r *LedgerRepo) flip(ctx context.Context, earningID string, from, to EarningStatus) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE vendor_earnings SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2 AND payout_id IS NULL`,
		earningID, from, to)
	if err != nil {
		return mapConflict(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("earning %s is not %s (or is earmarked)", earningID, from)
	}
	return nil
}

func (r *LedgerRepo) ListEarnings(ctx context.Context, vendorID string, limit, offset int) ([]VendorEarning, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+earningColumns+` FROM vendor_earnings
		WHERE vendor_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		vendorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VendorEarning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// VendorCommissionRate reads the vendor's rate from the catalog side.
func (r *LedgerRepo) VendorCommissionRate(ctx context.Context, vendorID string) (decimal.Decimal, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT commission_rate::text FROM vendors WHERE id=$1`, vendorID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
