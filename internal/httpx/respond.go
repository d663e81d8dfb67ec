package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto HTTP responses. Recoverable errors keep
// their actionable message; concurrency and reconciliation details are never
// shown raw, only logged.
func writeErr(w http.ResponseWriter, err error) {
	var (
		stockErr   *settlement.InsufficientStockError
		transErr   *settlement.InvalidTransitionError
		ptransErr  *settlement.InvalidPayoutTransitionError
		balanceErr *settlement.InsufficientBalanceError
		minErr     *settlement.BelowMinimumError
		reconcErr  *settlement.ReconciliationRequiredError
	)
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": stockErr.Error()})
	case errors.As(err, &transErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": transErr.Error()})
	case errors.As(err, &ptransErr):
		writeJSON(w, http.StatusConflict, map[string]string{"error": ptransErr.Error()})
	case errors.As(err, &balanceErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": balanceErr.Error()})
	case errors.As(err, &minErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": minErr.Error()})
	case errors.Is(err, settlement.ErrReservationExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "reservation expired, reserve again"})
	case errors.Is(err, settlement.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, settlement.ErrConcurrencyConflict):
		log.Printf("concurrency conflict: %v", err)
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict, please retry"})
	case errors.As(err, &reconcErr):
		log.Printf("reconciliation required: %v", err)
		writeJSON(w, http.StatusAccepted, map[string]any{"reconciliation_required": true})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error, please retry"})
	}
}
