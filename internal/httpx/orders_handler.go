package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-ecom-orders/internal/orders"
	"github.com/ariefcatur/go-ecom-orders/internal/validation"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type OrdersHandler struct {
	Svc *orders.Service
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.listOrders)
		r.Get("/{code}", h.getOrder)
		r.Delete("/{code}", h.deleteOrder)
	})
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, bodyError(err, "body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp, replayed, err := h.Svc.PlaceOrderWithKey(ctx, r.Header.Get(HeaderIdempotencyKey), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set(HeaderReplayed, "true")
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Svc.ListOrders(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	code, err := orderCode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp, err := h.Svc.GetOrder(ctx, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	code, err := orderCode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Svc.DeleteOrder(ctx, code); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orderCode(r *http.Request) (string, error) {
	code := chi.URLParam(r, "code")
	if !orders.ValidCode(code) {
		return "", validation.Invalid("code", "must be ORD followed by 8 uppercase letters or digits")
	}
	return code, nil
}
