package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PayoutRepo drains available balance. The central correctness property:
// reading the balance and earmarking the covering earnings happen inside one
// transaction that holds FOR UPDATE locks on all of the vendor's available
// rows, so two concurrent requests can never both claim the same funds.
type PayoutRepo struct{ DB *pgxpool.Pool }

const payoutColumns = `id, vendor_id, amount_cents, processing_fee_cents, net_amount_cents,
	status, period_start, period_end, requested_by, COALESCE(processed_by,''),
	processed_at, COALESCE(cancel_reason,''), created_at, updated_at`

func scanPayout(row pgx.Row) (Payout, error) {
	var p Payout
	err := row.Scan(&p.ID, &p.VendorID, &p.AmountCents, &p.ProcessingFeeCents, &p.NetAmountCents,
		&p.Status, &p.PeriodStart, &p.PeriodEnd, &p.RequestedBy, &p.ProcessedBy,
		&p.ProcessedAt, &p.CancelReason, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payout{}, ErrNotFound
	}
	return p, err
}

// Request creates a payout for amountCents against the vendor's balance
// recomputed under lock. Earnings are earmarked oldest-first; a boundary
// earning is split so the claimed sum equals the payout amount exactly.
func (r *PayoutRepo) Request(ctx context.Context, vendorID string, amountCents int64, requestedBy string, minimumCents, feeCents int64) (Payout, error) {
	if amountCents <= 0 {
		return Payout{}, fmt.Errorf("invalid payout amount %d", amountCents)
	}
	if amountCents < minimumCents {
		return Payout{}, &BelowMinimumError{MinimumCents: minimumCents, RequestedCents: amountCents}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Payout{}, err
	}
	defer tx.Rollback(ctx)

	// per-vendor serialization point
	rows, err := tx.Query(ctx, `
		SELECT `+earningColumns+` FROM vendor_earnings
		WHERE vendor_id=$1 AND status=$2 AND payout_id IS NULL
		ORDER BY created_at, id
		FOR UPDATE`,
		vendorID, EarningAvailable)
	if err != nil {
		return Payout{}, mapConflict(err)
	}
	var earnings []VendorEarning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			rows.Close()
			return Payout{}, err
		}
		earnings = append(earnings, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Payout{}, mapConflict(err)
	}

	plan, err := planEarmark(earnings, amountCents)
	if err != nil {
		return Payout{}, err
	}

	periodStart := time.Now().UTC()
	for _, e := range earnings {
		if e.CreatedAt.Before(periodStart) {
			periodStart = e.CreatedAt
		}
	}

	p := Payout{
		ID:                 uuid.NewString(),
		VendorID:           vendorID,
		AmountCents:        amountCents,
		ProcessingFeeCents: feeCents,
		NetAmountCents:     amountCents - feeCents,
		Status:             PayoutRequested,
		PeriodStart:        periodStart,
		PeriodEnd:          time.Now().UTC(),
		RequestedBy:        requestedBy,
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO payouts(id, vendor_id, amount_cents, processing_fee_cents, net_amount_cents,
			status, period_start, period_end, requested_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+payoutColumns,
		p.ID, p.VendorID, p.AmountCents, p.ProcessingFeeCents, p.NetAmountCents,
		p.Status, p.PeriodStart, p.PeriodEnd, p.RequestedBy)
	p, err = scanPayout(row)
	if err != nil {
		return Payout{}, mapConflict(err)
	}

	if len(plan.ClaimIDs) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE vendor_earnings SET payout_id=$1, updated_at=now()
			WHERE id = ANY($2)`, p.ID, plan.ClaimIDs); err != nil {
			return Payout{}, mapConflict(err)
		}
	}
	if s := plan.Split; s != nil {
		// shrink the boundary row by the remainder and earmark it; park the
		// remainder as a fresh available row with zero commission
		if _, err := tx.Exec(ctx, `
			UPDATE vendor_earnings
			SET amount_cents = amount_cents - $2,
			    net_amount_cents = net_amount_cents - $2,
			    payout_id = $3, updated_at = now()
			WHERE id=$1`, s.EarningID, s.RemainderNetCents, p.ID); err != nil {
			return Payout{}, mapConflict(err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO vendor_earnings(id, vendor_id, order_id, kind, amount_cents,
				commission_cents, net_amount_cents, status, available_at)
			SELECT $1, vendor_id, order_id, $3, $4, 0, $4, status, available_at
			FROM vendor_earnings WHERE id=$2`,
			uuid.NewString(), s.EarningID, EarningRemainder, s.RemainderNetCents); err != nil {
			return Payout{}, mapConflict(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Payout{}, mapConflict(err)
	}
	return p, nil
}

// Process moves a payout from requested to processing and records the
// operator picking it up.
func (r *PayoutRepo) Process(ctx context.Context, payoutID, processorID string) (Payout, error) {
	return r.transition(ctx, payoutID, PayoutProcessing, func(tx pgx.Tx, p Payout) (Payout, error) {
		return scanPayout(tx.QueryRow(ctx, `
			UPDATE payouts SET status=$2, processed_by=$3, updated_at=now()
			WHERE id=$1 RETURNING `+payoutColumns,
			p.ID, PayoutProcessing, processorID))
	})
}

// MarkPaid completes a processing payout: the covering earnings flip to paid
// and processed_at is recorded.
func (r *PayoutRepo) MarkPaid(ctx context.Context, payoutID string) (Payout, error) {
	return r.transition(ctx, payoutID, PayoutPaid, func(tx pgx.Tx, p Payout) (Payout, error) {
		if _, err := tx.Exec(ctx, `
			UPDATE vendor_earnings SET status=$2, updated_at=now()
			WHERE payout_id=$1 AND status=$3`,
			p.ID, EarningPaid, EarningAvailable); err != nil {
			return Payout{}, err
		}
		return scanPayout(tx.QueryRow(ctx, `
			UPDATE payouts SET status=$2, processed_at=now(), updated_at=now()
			WHERE id=$1 RETURNING `+payoutColumns,
			p.ID, PayoutPaid))
	})
}

// Cancel aborts a requested or processing payout and releases the earmarked
// earnings back to the available balance. A reason is required.
func (r *PayoutRepo) Cancel(ctx context.Context, payoutID, reason string) (Payout, error) {
	if reason == "" {
		return Payout{}, fmt.Errorf("cancellation requires a reason")
	}
	return r.transition(ctx, payoutID, PayoutCancelled, func(tx pgx.Tx, p Payout) (Payout, error) {
		if _, err := tx.Exec(ctx, `
			UPDATE vendor_earnings SET payout_id=NULL, updated_at=now()
			WHERE payout_id=$1 AND status=$2`,
			p.ID, EarningAvailable); err != nil {
			return Payout{}, err
		}
		return scanPayout(tx.QueryRow(ctx, `
			UPDATE payouts SET status=$2, cancel_reason=$3, updated_at=now()
			WHERE id=$1 RETURNING `+payoutColumns,
			p.ID, PayoutCancelled, reason))
	})
}

// MarkFailed records a definitive external disbursement failure. The
// earmarked earnings are deliberately NOT released: money may have moved, so
// a reconciliation row is raised for an operator instead of auto-reverting.
func (r *PayoutRepo) MarkFailed(ctx context.Context, payoutID, reason string) (Payout, error) {
	return r.transition(ctx, payoutID, PayoutFailed, func(tx pgx.Tx, p Payout) (Payout, error) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO reconciliations(id, payout_id, deficit_cents, reason)
			VALUES ($1,$2,$3,$4)`,
			uuid.NewString(), p.ID, p.AmountCents, reason); err != nil {
			return Payout{}, err
		}
		return scanPayout(tx.QueryRow(ctx, `
			UPDATE payouts SET status=$2, cancel_reason=$3, updated_at=now()
			WHERE id=$1 RETURNING `+payoutColumns,
			p.ID, PayoutFailed, reason))
	})
}

func (r *PayoutRepo) transition(ctx context.Context, payoutID string, target PayoutStatus, apply func(pgx.Tx, Payout) (Payout, error)) (Payout, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Payout{}, err
	}
	defer tx.Rollback(ctx)

	p, err := scanPayout(tx.QueryRow(ctx, `
		SELECT `+payoutColumns+` FROM payouts WHERE id=$1 FOR UPDATE`, payoutID))
	if err != nil {
		return Payout{}, mapConflict(err)
	}
	if !CanTransitionPayout(p.Status, target) {
		return Payout{}, &InvalidPayoutTransitionError{From: p.Status, To: target}
	}

	p, err = apply(tx, p)
	if err != nil {
		return Payout{}, mapConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Payout{}, mapConflict(err)
	}
	return p, nil
}

func (r *PayoutRepo) Get(ctx context.Context, payoutID string) (Payout, error) {
	return scanPayout(r.DB.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id=$1`, payoutID))
}

func (r *PayoutRepo) List(ctx context.Context, vendorID string, limit, offset int) ([]Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE vendor_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		vendorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
