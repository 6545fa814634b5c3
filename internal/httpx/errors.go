package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/orumagideon/morine-gypsum/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto status codes:
// validation/stock/state -> 400, not found -> 404, already verified -> 409,
// anything else -> 500. The 500 detail is logged, never sent to the client.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var (
		validation *orders.ValidationError
		notFound   *orders.NotFoundError
		stock      *orders.InsufficientStockError
		state      *orders.InvalidStateError
		verified   *orders.AlreadyVerifiedError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Msg})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      stock.Error(),
			"product_id": stock.ProductID,
			"requested":  stock.Requested,
			"available":  stock.Available,
		})
	case errors.As(err, &state):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": state.Msg})
	case errors.As(err, &verified):
		writeJSON(w, http.StatusConflict, map[string]string{"error": verified.Error()})
	default:
		if log != nil {
			log.Error("request failed", zap.Error(err))
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
