package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReservationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reservations_created_total",
		Help: "Stock reservations successfully placed",
	})

	OversellRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_oversell_rejections_total",
		Help: "Reserve calls rejected for insufficient stock",
	})

	ReservationsConverted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reservations_converted_total",
		Help: "Reservations converted to order items (permanent deductions)",
	})

	ReservationsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reservations_swept_total",
		Help: "Expired reservations released by the sweeper",
	})

	ItemTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_item_transitions_total",
		Help: "Fulfillment transitions applied",
	}, []string{"to"})

	EarningsPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_earnings_posted_total",
		Help: "Vendor earnings posted to the ledger",
	})

	EarningsMatured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_earnings_matured_total",
		Help: "Earnings matured from pending to available",
	})

	PayoutTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_payout_transitions_total",
		Help: "Payout status transitions applied",
	}, []string{"to"})
)

func init() {
	prometheus.MustRegister(
		ReservationsCreated,
		OversellRejections,
		ReservationsConverted,
		ReservationsSwept,
		ItemTransitions,
		EarningsPosted,
		EarningsMatured,
		PayoutTransitions,
	)
}
