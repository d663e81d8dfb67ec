package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FulfillmentRepo tracks per-vendor item state. Transitions are serialized
// per item row; items of the same order move independently.
type FulfillmentRepo struct{ DB *pgxpool.Pool }

const itemColumns = `id, order_id, vendor_id, variant_id, quantity, unit_price_cents,
	product_name, vendor_status, COALESCE(carrier,''), COALESCE(tracking_number,''),
	shipped_at, delivered_at, created_at, updated_at`

func scanItem(row pgx.Row) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.VendorID, &it.VariantID, &it.Quantity,
		&it.UnitPriceCents, &it.ProductName, &it.VendorStatus, &it.Carrier,
		&it.TrackingNumber, &it.ShippedAt, &it.DeliveredAt, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, ErrNotFound
	}
	return it, err
}

func (r *FulfillmentRepo) GetItem(ctx context.Context, itemID string) (OrderItem, error) {
	return scanItem(r.DB.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id=$1`, itemID))
}

// Transition moves an item to target if the pair is in the transition table,
// appending to the audit log in the same transaction. A transition to
// shipped must go through Ship so carrier and tracking land atomically.
func (r *FulfillmentRepo) Transition(ctx context.Context, itemID string, target ItemStatus, actor, notes string) (OrderItem, error) {
	if !target.Valid() {
		return OrderItem{}, fmt.Errorf("unknown status %q", target)
	}
	if target == ItemShipped {
		return OrderItem{}, fmt.Errorf("transition to %s requires carrier and tracking, use Ship", ItemShipped)
	}
	return r.transition(ctx, itemID, target, actor, notes, "", "")
}

// Ship is the shipped transition; carrier and tracking number are written in
// the same transaction as the status change.
func (r *FulfillmentRepo) Ship(ctx context.Context, itemID, carrier, trackingNumber, actor string) (OrderItem, error) {
	if carrier == "" || trackingNumber == "" {
		return OrderItem{}, fmt.Errorf("carrier and tracking number are required to ship")
	}
	return r.transition(ctx, itemID, ItemShipped, actor, "", carrier, trackingNumber)
}

func (r *FulfillmentRepo) transition(ctx context.Context, itemID string, target ItemStatus, actor, notes, carrier, tracking string) (OrderItem, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OrderItem{}, err
	}
	defer tx.Rollback(ctx)

	var current ItemStatus
	err = tx.QueryRow(ctx, `SELECT vendor_status FROM order_items WHERE id=$1 FOR UPDATE`, itemID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return OrderItem{}, ErrNotFound
	}
	if err != nil {
		return OrderItem{}, mapConflict(err)
	}

	if !CanTransition(current, target) {
		return OrderItem{}, &InvalidTransitionError{From: current, To: target}
	}

	var row pgx.Row
	switch target {
	case ItemShipped:
		row = tx.QueryRow(ctx, `
			UPDATE order_items
			SET vendor_status=$2, carrier=$3, tracking_number=$4, shipped_at=now(), updated_at=now()
			WHERE id=$1 RETURNING `+itemColumns, itemID, target, carrier, tracking)
	case ItemDelivered:
		row = tx.QueryRow(ctx, `
			UPDATE order_items SET vendor_status=$2, delivered_at=now(), updated_at=now()
			WHERE id=$1 RETURNING `+itemColumns, itemID, target)
	default:
		row = tx.QueryRow(ctx, `
			UPDATE order_items SET vendor_status=$2, updated_at=now()
			WHERE id=$1 RETURNING `+itemColumns, itemID, target)
	}
	it, err := scanItem(row)
	if err != nil {
		return OrderItem{}, mapConflict(err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO item_transitions(id, item_id, from_status, to_status, actor, notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.NewString(), itemID, current, target, actor, notes); err != nil {
		return OrderItem{}, mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return OrderItem{}, mapConflict(err)
	}
	return it, nil
}

func (r *FulfillmentRepo) AddTrackingEvent(ctx context.Context, itemID, status, description string) error {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO tracking_events(id, item_id, status, description)
		SELECT $1, id, $3, $4 FROM order_items WHERE id=$2`,
		uuid.NewString(), itemID, status, description)
	if err != nil {
		return mapConflict(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FulfillmentRepo) ListTransitions(ctx context.Context, itemID string) ([]ItemTransition, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, item_id, from_status, to_status, actor, COALESCE(notes,''), created_at
		FROM item_transitions WHERE item_id=$1 ORDER BY created_at`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemTransition
	for rows.Next() {
		var t ItemTransition
		if err := rows.Scan(&t.ID, &t.ItemID, &t.From, &t.To, &t.Actor, &t.Notes, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// VendorOrderSettleable reports whether every item of the vendor in the
// order has reached a terminal state, and the gross over items that settled
// (reached trigger). Cancelled/refunded items contribute nothing.
func (r *FulfillmentRepo) VendorOrderSettleable(ctx context.Context, vendorID, orderID string, trigger ItemStatus) (grossCents int64, ready bool, err error) {
	closed := []string{string(ItemDelivered), string(ItemCancelled), string(ItemRefunded), string(trigger)}
	settled := []string{string(ItemDelivered), string(trigger)}
	var open int
	err = r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE NOT vendor_status = ANY($3)),
		       COALESCE(SUM(unit_price_cents * quantity) FILTER (WHERE vendor_status = ANY($4)), 0)
		FROM order_items WHERE vendor_id=$1 AND order_id=$2`,
		vendorID, orderID, closed, settled).Scan(&open, &grossCents)
	if err != nil {
		return 0, false, err
	}
	return grossCents, open == 0, nil
}
