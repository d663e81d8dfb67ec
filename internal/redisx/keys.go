package redisx

import "time"

const (
	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Idempotency payout request: idem:payout:request:{vendor_id}:{request_ref}
	KeyIdemPayoutRequest = "idem:payout:request:%s:%s"

	// Cache vendor balance summary: vendor_balance:{vendor_id} -> JSON
	KeyVendorBalance = "vendor_balance:%s"

	// Cache item status: item_status:{item_id} -> {"status": "..."}
	KeyItemStatus = "item_status:%s"
)

var (
	TTLDedup        = 48 * time.Hour
	TTLIdempotency  = 24 * time.Hour
	TTLBalanceCache = 30 * time.Second
	TTLStatusCache  = 5 * time.Minute
)
