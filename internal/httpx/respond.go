package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
	"github.com/ariefcatur/go-ecom-orders/internal/validation"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type stockErrorBody struct {
	Error string `json:"error"`
	*catalog.InsufficientStockError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unrecognised is a 500
// and its cause stays in the log only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *validation.Error
		stockErr *catalog.InsufficientStockError
		maxErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input", Fields: verr.Fields})
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusConflict, stockErrorBody{Error: catalog.ErrInsufficientStock.Error(), InsufficientStockError: stockErr})
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, orders.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, catalog.ErrProductInUse), errors.Is(err, orders.ErrIdempotencyInProgress):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, orders.ErrIdempotencyKeyReused):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, catalog.ErrImageTooLarge), errors.As(err, &maxErr):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "payload too large"})
	default:
		logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
