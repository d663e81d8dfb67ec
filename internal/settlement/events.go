package settlement

import (
	"encoding/json"
	"time"
)

const (
	EventItemSettled     = "ItemSettled"
	EventEarningPosted   = "EarningPosted"
	EventEarningRejected = "EarningRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "settlement-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

// ItemSettledPayload is published when an item reaches the settlement
// trigger status (delivered by default). It is the only coupling between the
// fulfillment state machine and the ledger.
type ItemSettledPayload struct {
	ItemID         string `json:"item_id"`
	OrderID        string `json:"order_id"`
	VendorID       string `json:"vendor_id"`
	CommissionRate string `json:"commission_rate"` // decimal string, e.g. "0.10"
}

type EarningPostedPayload struct {
	EarningID       string `json:"earning_id"`
	VendorID        string `json:"vendor_id"`
	OrderID         string `json:"order_id"`
	AmountCents     int64  `json:"amount_cents"`
	CommissionCents int64  `json:"commission_cents"`
	NetAmountCents  int64  `json:"net_amount_cents"`
}

type EarningRejectedPayload struct {
	VendorID string `json:"vendor_id"`
	OrderID  string `json:"order_id"`
	Reason   string `json:"reason"` // e.g. NOTHING_DELIVERED
}
