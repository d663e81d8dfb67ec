package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hanifr/marketplace-settlement/internal/metrics"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

// CheckoutHandler is the cart/checkout-facing surface: place holds, release
// them, and convert them into order items on payment success.
type CheckoutHandler struct {
	Reservations   *settlement.ReservationRepo
	ReservationTTL time.Duration
}

type ReserveReq struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	HolderRef string `json:"holder_ref"`
}

type ReserveResp struct {
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type CheckoutReq struct {
	OrderID        string   `json:"order_id"`
	ReservationIDs []string `json:"reservation_ids"`
}

type CheckoutItemResp struct {
	ItemID         string `json:"item_id"`
	VendorID       string `json:"vendor_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type CheckoutResp struct {
	OrderID string             `json:"order_id"`
	Items   []CheckoutItemResp `json:"items"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/reservations", h.reserve)
	r.Delete("/reservations/{id}", h.release)
	r.Get("/variants/{id}/availability", h.availability)
	r.Post("/checkout", h.checkout)
}

func (h *CheckoutHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.VariantID == "" || req.Quantity <= 0 || req.HolderRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reservations.Reserve(ctx, req.VariantID, req.Quantity, req.HolderRef, h.ReservationTTL)
	if err != nil {
		var stockErr *settlement.InsufficientStockError
		if errors.As(err, &stockErr) {
			metrics.OversellRejections.Inc()
		}
		writeErr(w, err)
		return
	}
	metrics.ReservationsCreated.Inc()
	writeJSON(w, http.StatusCreated, ReserveResp{ReservationID: res.ID, ExpiresAt: res.ExpiresAt})
}

func (h *CheckoutHandler) release(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Reservations.Release(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Reservations.Available(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"available": n})
}

// checkout converts reservations into order items after payment success.
// Conversion is idempotent per reservation, so a replayed checkout settles
// on the same stock level.
func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.ReservationIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reservation_ids"})
		return
	}
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	resp := CheckoutResp{OrderID: orderID}
	for _, rid := range req.ReservationIDs {
		it, created, err := h.Reservations.ConvertToOrder(ctx, rid, orderID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if created {
			metrics.ReservationsConverted.Inc()
		}
		resp.Items = append(resp.Items, CheckoutItemResp{
			ItemID: it.ID, VendorID: it.VendorID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}
