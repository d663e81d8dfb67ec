package settlement

import "time"

type StockVariant struct {
	ID            string
	SKU           string
	Name          string
	PriceCents    int64
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Reservation struct {
	ID          string
	VariantID   string
	Quantity    int
	HolderRef   string
	Status      ReservationStatus
	OrderItemID string // set when converted
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// OrderItem carries an immutable snapshot of the product at purchase time
// (unit price, name); later catalog edits never touch it.
type OrderItem struct {
	ID             string
	OrderID        string
	VendorID       string
	VariantID      string
	Quantity       int
	UnitPriceCents int64
	ProductName    string
	VendorStatus   ItemStatus
	Carrier        string
	TrackingNumber string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (it OrderItem) LineTotalCents() int64 {
	return it.UnitPriceCents * int64(it.Quantity)
}

type ItemTransition struct {
	ID        string
	ItemID    string
	From      ItemStatus
	To        ItemStatus
	Actor     string
	Notes     string
	CreatedAt time.Time
}

type TrackingEvent struct {
	ID          string
	ItemID      string
	Status      string
	Description string
	CreatedAt   time.Time
}

type EarningKind string

const (
	// EarningSettlement rows are posted by the ledger consumer, one per
	// (vendor, order).
	EarningSettlement EarningKind = "settlement"
	// EarningRemainder rows are created when a payout earmark splits a
	// boundary earning; they carry net only (zero commission).
	EarningRemainder EarningKind = "remainder"
)

type VendorEarning struct {
	ID              string
	VendorID        string
	OrderID         string
	Kind            EarningKind
	AmountCents     int64
	CommissionCents int64
	NetAmountCents  int64
	Status          EarningStatus
	AvailableAt     time.Time
	PayoutID        string // earmark; empty until claimed by a payout
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type EarningReversal struct {
	ID        string
	EarningID string
	// AmountCents is negative: a correction row, the original is never deleted.
	AmountCents int64
	Reason      string
	CreatedAt   time.Time
}

// Reconciliation is an operator-queue row raised when money cannot be
// corrected automatically (e.g. reversing an already-paid earning).
type Reconciliation struct {
	ID           string
	EarningID    string
	PayoutID     string
	DeficitCents int64
	Reason       string
	Resolved     bool
	CreatedAt    time.Time
}

type Payout struct {
	ID                 string
	VendorID           string
	AmountCents        int64
	ProcessingFeeCents int64
	NetAmountCents     int64
	Status             PayoutStatus
	PeriodStart        time.Time
	PeriodEnd          time.Time
	RequestedBy        string
	ProcessedBy        string
	ProcessedAt        *time.Time
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Balances struct {
	PendingCents   int64 `json:"pending_cents"`
	AvailableCents int64 `json:"available_cents"`
	WithheldCents  int64 `json:"withheld_cents"`
	PaidCents      int64 `json:"paid_cents"`
}
