package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanifr/marketplace-settlement/internal/metrics"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

// AdminHandler is the operator surface: payout processing, ledger
// corrections and manual stock adjustments.
type AdminHandler struct {
	Payouts      *settlement.PayoutRepo
	Ledger       *settlement.LedgerRepo
	Reservations *settlement.ReservationRepo
}

type ProcessPayoutReq struct {
	ProcessorID string `json:"processor_id"`
}

type ReasonReq struct {
	Reason string `json:"reason"`
}

type AdjustStockReq struct {
	Delta int    `json:"delta"`
	Actor string `json:"actor"`
	Note  string `json:"note"`
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Post("/admin/payouts/{id}/process", h.processPayout)
	r.Post("/admin/payouts/{id}/paid", h.markPaid)
	r.Post("/admin/payouts/{id}/cancel", h.cancelPayout)
	r.Post("/admin/payouts/{id}/fail", h.failPayout)

	r.Post("/admin/earnings/{id}/reverse", h.reverseEarning)
	r.Post("/admin/earnings/{id}/withhold", h.withhold)
	r.Post("/admin/earnings/{id}/unwithhold", h.unwithhold)

	r.Post("/admin/stock/{id}/adjust", h.adjustStock)
}

func (h *AdminHandler) processPayout(w http.ResponseWriter, r *http.Request) {
	var req ProcessPayoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProcessorID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing processor_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Payouts.Process(ctx, chi.URLParam(r, "id"), req.ProcessorID)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) markPaid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Payouts.MarkPaid(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) cancelPayout(w http.ResponseWriter, r *http.Request) {
	var req ReasonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reason"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Payouts.Cancel(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) failPayout(w http.ResponseWriter, r *http.Request) {
	var req ReasonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reason"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Payouts.MarkFailed(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	metrics.PayoutTransitions.WithLabelValues(string(p.Status)).Inc()
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) reverseEarning(w http.ResponseWriter, r *http.Request) {
	var req ReasonReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing reason"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Reverse(ctx, chi.URLParam(r, "id"), req.Reason); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) withhold(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Ledger.Withhold(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) unwithhold(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Ledger.Unwithhold(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Delta == 0 || req.Actor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Reservations.AdjustStock(ctx, chi.URLParam(r, "id"), req.Delta, req.Actor, req.Note); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
