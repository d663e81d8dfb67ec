package settlement

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationConverted ReservationStatus = "CONVERTED"
)

// ItemStatus is the per-vendor fulfillment state of one order item.
type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemConfirmed   ItemStatus = "confirmed"
	ItemProcessing  ItemStatus = "processing"
	ItemReadyToShip ItemStatus = "ready_to_ship"
	ItemShipped     ItemStatus = "shipped"
	ItemDelivered   ItemStatus = "delivered"
	ItemCancelled   ItemStatus = "cancelled"
	ItemRefunded    ItemStatus = "refunded"
)

// itemNext is the explicit transition table; any pair not listed is invalid.
// cancelled/refunded are reachable from every non-terminal state.
var itemNext = map[ItemStatus]map[ItemStatus]bool{
	ItemPending:     {ItemConfirmed: true, ItemCancelled: true, ItemRefunded: true},
	ItemConfirmed:   {ItemProcessing: true, ItemCancelled: true, ItemRefunded: true},
	ItemProcessing:  {ItemReadyToShip: true, ItemCancelled: true, ItemRefunded: true},
	ItemReadyToShip: {ItemShipped: true, ItemCancelled: true, ItemRefunded: true},
	ItemShipped:     {ItemDelivered: true, ItemCancelled: true, ItemRefunded: true},
	ItemDelivered:   {},
	ItemCancelled:   {},
	ItemRefunded:    {},
}

func (s ItemStatus) Valid() bool {
	_, ok := itemNext[s]
	return ok
}

func (s ItemStatus) Terminal() bool {
	return s == ItemDelivered || s == ItemCancelled || s == ItemRefunded
}

func CanTransition(from, to ItemStatus) bool {
	return itemNext[from][to]
}

// CanBeShipped reports whether the item is in a state from which the vendor
// may still hand it to a carrier.
func CanBeShipped(s ItemStatus) bool {
	return s == ItemConfirmed || s == ItemProcessing || s == ItemReadyToShip
}

type EarningStatus string

const (
	EarningPending   EarningStatus = "pending"
	EarningAvailable EarningStatus = "available"
	EarningWithheld  EarningStatus = "withheld"
	EarningPaid      EarningStatus = "paid"
	EarningReversed  EarningStatus = "reversed"
)

type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "requested"
	PayoutProcessing PayoutStatus = "processing"
	PayoutPaid       PayoutStatus = "paid"
	PayoutCancelled  PayoutStatus = "cancelled"
	PayoutFailed     PayoutStatus = "failed"
)

var payoutNext = map[PayoutStatus]map[PayoutStatus]bool{
	PayoutRequested:  {PayoutProcessing: true, PayoutCancelled: true},
	PayoutProcessing: {PayoutPaid: true, PayoutFailed: true, PayoutCancelled: true},
	PayoutPaid:       {},
	PayoutCancelled:  {},
	PayoutFailed:     {},
}

func CanTransitionPayout(from, to PayoutStatus) bool {
	return payoutNext[from][to]
}
