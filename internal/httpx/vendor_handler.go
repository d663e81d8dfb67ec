package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/hanifr/marketplace-settlement/internal/kafka"
	"github.com/hanifr/marketplace-settlement/internal/metrics"
	"github.com/hanifr/marketplace-settlement/internal/redisx"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

// VendorHandler is the vendor-facing surface: balance summary, earnings and
// payout history, payout requests and per-item shipment actions.
type VendorHandler struct {
	Ledger      *settlement.LedgerRepo
	Payouts     *settlement.PayoutRepo
	Fulfillment *settlement.FulfillmentRepo
	Redis       *redis.Client
	Producer    *kafkax.Producer // publish item.settled
	Service     string

	MinimumPayoutCents int64
	PayoutFeeCents     int64
	SettleTrigger      settlement.ItemStatus
}

type RequestPayoutReq struct {
	AmountCents int64  `json:"amount_cents"`
	RequestedBy string `json:"requested_by"`
	RequestRef  string `json:"request_ref"` // optional client idempotency token
}

type RequestPayoutResp struct {
	PayoutID       string `json:"payout_id"`
	AmountCents    int64  `json:"amount_cents"`
	NetAmountCents int64  `json:"net_amount_cents"`
	Status         string `json:"status"`
	Idempotent     bool   `json:"idempotent"`
}

type TransitionReq struct {
	Target string `json:"target"`
	Actor  string `json:"actor"`
	Notes  string `json:"notes"`
}

type ShipReq struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	Actor          string `json:"actor"`
}

type TrackingReq struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

func (h *VendorHandler) Register(r *chi.Mux) {
	r.Get("/vendors/{id}/balance", h.balance)
	r.Get("/vendors/{id}/earnings", h.listEarnings)
	r.Get("/vendors/{id}/payouts", h.listPayouts)
	r.Post("/vendors/{id}/payouts", h.requestPayout)

	r.Get("/items/{id}", h.getItem)
	r.Get("/items/{id}/transitions", h.listTransitions)
	r.Post("/items/{id}/transition", h.transition)
	r.Post("/items/{id}/ship", h.ship)
	r.Post("/items/{id}/tracking", h.addTracking)
}

func (h *VendorHandler) balance(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache fast path; DB stays the truth
	key := fmt.Sprintf(redisx.KeyVendorBalance, vendorID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	b, err := h.Ledger.Balances(ctx, vendorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	body, _ := json.Marshal(b)
	_ = h.Redis.Set(ctx, key, body, redisx.TTLBalanceCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *VendorHandler) listEarnings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, offset := pagination(r)
	out, err := h.Ledger.ListEarnings(ctx, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VendorHandler) listPayouts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, offset := pagination(r)
	out, err := h.Payouts.List(ctx, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VendorHandler) requestPayout(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	var req RequestPayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.RequestedBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing requested_by"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// idempotency fast path on the client token; the per-vendor row locks in
	// the repo are what actually prevent double-spend
	var idemKey string
	if req.RequestRef != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemPayoutRequest, vendorID, req.RequestRef)
		if existing, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && existing != "" {
			p, err := h.Payouts.Get(ctx, existing)
			if err == nil {
				writeJSON(w, http.StatusOK, RequestPayoutResp{
					PayoutID: p.ID, AmountCents: p.AmountCents, NetAmountCents: p.NetAmountCents,
					Status: string(p.Status), Idempotent: true,
				})
				return
			}
		}
	}

	p, err := h.Payouts.Request(ctx, vendorID, req.AmountCents, req.RequestedBy, h.MinimumPayoutCents, h.PayoutFeeCents)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.PayoutTransitions.WithLabelValues(string(settlement.PayoutRequested)).Inc()

	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, p.ID, redisx.TTLIdempotency).Err()
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyVendorBalance, vendorID)).Err()

	writeJSON(w, http.StatusCreated, RequestPayoutResp{
		PayoutID: p.ID, AmountCents: p.AmountCents, NetAmountCents: p.NetAmountCents,
		Status: string(p.Status),
	})
}

func (h *VendorHandler) getItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	it, err := h.Fulfillment.GetItem(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *VendorHandler) listTransitions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Fulfillment.ListTransitions(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *VendorHandler) transition(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	var req TransitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Target == "" || req.Actor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Fulfillment.Transition(ctx, itemID, settlement.ItemStatus(req.Target), req.Actor, req.Notes)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.ItemTransitions.WithLabelValues(string(it.VendorStatus)).Inc()
	h.maybePublishSettled(ctx, r, it)
	writeJSON(w, http.StatusOK, it)
}

func (h *VendorHandler) ship(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	var req ShipReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Carrier == "" || req.TrackingNumber == "" || req.Actor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	it, err := h.Fulfillment.Ship(ctx, itemID, req.Carrier, req.TrackingNumber, req.Actor)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.ItemTransitions.WithLabelValues(string(it.VendorStatus)).Inc()
	h.maybePublishSettled(ctx, r, it)
	writeJSON(w, http.StatusOK, it)
}

func (h *VendorHandler) addTracking(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	var req TrackingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Fulfillment.AddTrackingEvent(ctx, itemID, req.Status, req.Description); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// maybePublishSettled emits the settlement trigger event when the item
// reaches the trigger status, or any terminal status: cancelling the last
// open item can complete the vendor's order too, and the consumer re-checks
// settleability before posting. The ledger lives behind the event, never a
// direct call, so settlement policy can change independently.
func (h *VendorHandler) maybePublishSettled(ctx context.Context, r *http.Request, it settlement.OrderItem) {
	if it.VendorStatus != h.SettleTrigger && !it.VendorStatus.Terminal() {
		return
	}
	rate, err := h.Ledger.VendorCommissionRate(ctx, it.VendorID)
	rateStr := ""
	if err == nil {
		rateStr = rate.String()
	}
	ev := settlement.Envelope{
		EventID:       uuid.NewString(),
		EventType:     settlement.EventItemSettled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: it.OrderID,
		Payload: kafkax.MustMarshal(settlement.ItemSettledPayload{
			ItemID:         it.ID,
			OrderID:        it.OrderID,
			VendorID:       it.VendorID,
			CommissionRate: rateStr,
		}),
	}
	h.Producer.Publish(settlement.PartitionKey(it.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(settlement.EventItemSettled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
