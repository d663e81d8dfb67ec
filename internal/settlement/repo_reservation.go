package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepo owns variant stock. Nothing else reads-then-writes
// stock_quantity; every mutation goes through a FOR UPDATE lock on the
// variant row so reserve never acts on stale availability.
type ReservationRepo struct{ DB *pgxpool.Pool }

// Reserve places a time-boxed hold on variant stock. All-or-nothing: if the
// live availability (stock minus active unexpired holds) cannot cover qty,
// nothing is written and InsufficientStockError is returned.
func (r *ReservationRepo) Reserve(ctx context.Context, variantID string, qty int, holderRef string, ttl time.Duration) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, fmt.Errorf("invalid quantity %d", qty)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Reservation{}, err
	}
	defer tx.Rollback(ctx)

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock_quantity FROM stock_variants WHERE id=$1 FOR UPDATE`, variantID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	if err != nil {
		return Reservation{}, mapConflict(err)
	}

	var reserved int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM reservations
		WHERE variant_id=$1 AND status=$2 AND expires_at > now()`,
		variantID, ReservationActive).Scan(&reserved)
	if err != nil {
		return Reservation{}, mapConflict(err)
	}

	available := stock - reserved
	if available < qty {
		return Reservation{}, &InsufficientStockError{VariantID: variantID, Requested: qty, Available: available}
	}

	res := Reservation{
		ID:        uuid.NewString(),
		VariantID: variantID,
		Quantity:  qty,
		HolderRef: holderRef,
		Status:    ReservationActive,
		ExpiresAt: time.Now().UTC().Add(ttl),
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO reservations(id, variant_id, quantity, holder_ref, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		res.ID, res.VariantID, res.Quantity, res.HolderRef, res.Status, res.ExpiresAt)
	if err != nil {
		return Reservation{}, mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, mapConflict(err)
	}
	return res, nil
}

// Release gives the held capacity back without touching stock_quantity.
// Releasing an already released or converted reservation is a no-op.
func (r *ReservationRepo) Release(ctx context.Context, reservationID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE reservations SET status=$2 WHERE id=$1 AND status=$3`,
		reservationID, ReservationReleased, ReservationActive)
	if err != nil {
		return mapConflict(err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reservations WHERE id=$1)`, reservationID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

// ConvertToOrder turns an active reservation into a pending order item and
// permanently deducts stock, all in one transaction: either the item exists
// and the stock is gone, or neither. Replaying on an already converted
// reservation returns the existing item with created=false. Expired and
// released holds are rejected with ErrReservationExpired before anything is
// written.
func (r *ReservationRepo) ConvertToOrder(ctx context.Context, reservationID, orderID string) (OrderItem, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderItem{}, false, err
	}
	defer tx.Rollback(ctx)

	var (
		variantID   string
		qty         int
		status      ReservationStatus
		orderItemID string
		expiresAt   time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT variant_id, quantity, status, COALESCE(order_item_id,''), expires_at
		FROM reservations WHERE id=$1 FOR UPDATE`,
		reservationID).Scan(&variantID, &qty, &status, &orderItemID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, false, ErrNotFound
	}
	if err != nil {
		return OrderItem{}, false, mapConflict(err)
	}

	switch status {
	case ReservationConverted:
		it, err := scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id=$1`, orderItemID))
		return it, false, err
	case ReservationReleased:
		return OrderItem{}, false, fmt.Errorf("reservation %s already released: %w", reservationID, ErrReservationExpired)
	}
	if !expiresAt.After(time.Now().UTC()) {
		return OrderItem{}, false, fmt.Errorf("reservation %s: %w", reservationID, ErrReservationExpired)
	}

	var (
		vendorID   string
		name       string
		priceCents int64
	)
	err = tx.QueryRow(ctx, `
		SELECT vendor_id, name, price_cents FROM stock_variants WHERE id=$1 FOR UPDATE`,
		variantID).Scan(&vendorID, &name, &priceCents)
	if err != nil {
		return OrderItem{}, false, mapConflict(err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_variants SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id=$1`, variantID, qty); err != nil {
		// the non-negative check tripping means another buyer claimed the
		// stock out from under this hold; the caller should retry checkout
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return OrderItem{}, false, ErrConcurrencyConflict
		}
		return OrderItem{}, false, mapConflict(err)
	}

	it, err := scanItem(tx.QueryRow(ctx, `
		INSERT INTO order_items(id, order_id, vendor_id, variant_id, quantity,
			unit_price_cents, product_name, vendor_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+itemColumns,
		uuid.NewString(), orderID, vendorID, variantID, qty, priceCents, name, ItemPending))
	if err != nil {
		return OrderItem{}, false, mapConflict(err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status=$2, order_item_id=$3 WHERE id=$1`,
		reservationID, ReservationConverted, it.ID); err != nil {
		return OrderItem{}, false, mapConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return OrderItem{}, false, mapConflict(err)
	}
	return it, true, nil
}

// SweepExpired releases holds whose TTL has lapsed. Reserve already ignores
// expired holds when summing, so a late sweep only delays reclaiming rows,
// never causes oversell.
func (r *ReservationRepo) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE reservations SET status=$1
		WHERE status=$2 AND expires_at <= $3`,
		ReservationReleased, ReservationActive, now)
	if err != nil {
		return 0, mapConflict(err)
	}
	return int(ct.RowsAffected()), nil
}

func (r *ReservationRepo) Get(ctx context.Context, reservationID string) (Reservation, error) {
	var res Reservation
	err := r.DB.QueryRow(ctx, `
		SELECT id, variant_id, quantity, holder_ref, status, COALESCE(order_item_id,''), expires_at, created_at
		FROM reservations WHERE id=$1`, reservationID).
		Scan(&res.ID, &res.VariantID, &res.Quantity, &res.HolderRef, &res.Status,
			&res.OrderItemID, &res.ExpiresAt, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return res, err
}

// Available returns live availability for a variant.
func (r *ReservationRepo) Available(ctx context.Context, variantID string) (int, error) {
	var available int
	err := r.DB.QueryRow(ctx, `
		SELECT v.stock_quantity - COALESCE((
			SELECT SUM(quantity) FROM reservations
			WHERE variant_id = v.id AND status=$2 AND expires_at > now()), 0)
		FROM stock_variants v WHERE v.id=$1`,
		variantID, ReservationActive).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return available, err
}

// AdjustStock applies a manual operator correction and records it in the
// audit trail.
func (r *ReservationRepo) AdjustStock(ctx context.Context, variantID string, delta int, actor, note string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock_quantity FROM stock_variants WHERE id=$1 FOR UPDATE`, variantID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return mapConflict(err)
	}
	if stock+delta < 0 {
		return fmt.Errorf("adjustment would make stock negative: %d%+d", stock, delta)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_variants SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id=$1`, variantID, delta); err != nil {
		return mapConflict(err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_adjustments(id, variant_id, delta, actor, note)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), variantID, delta, actor, note); err != nil {
		return mapConflict(err)
	}

	return mapConflict(tx.Commit(ctx))
}
