package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

// OrdersHandler serves checkout and order history. Routes must be mounted
// behind RequireAuth.
type OrdersHandler struct {
	Orders *shop.Orders
	Cache  *redisx.Cache // optional
	Log    *slog.Logger
}

type checkoutReq struct {
	ShippingAddress string `json:"shipping_address"`
}

type checkoutResp struct {
	shop.Order
	Idempotent bool `json:"idempotent"`
}

type statusResp struct {
	OrderID int64       `json:"order_id"`
	Status  shop.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	c, _ := ClaimsFrom(r.Context())
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// fast-path idempotency via Redis; order tetap dibaca dari DB
	if id, ok, err := h.Cache.CheckoutOrder(ctx, c.UserID, idemKey); err != nil {
		logger(h.Log).WarnContext(ctx, "idempotency lookup", "error", err)
	} else if ok {
		ord, err := h.Orders.GetOrderForUser(ctx, c.UserID, id)
		if err == nil {
			writeJSON(w, http.StatusOK, checkoutResp{Order: ord, Idempotent: true})
			return
		}
		if !errors.Is(err, shop.ErrNotFound) {
			writeError(w, r, h.Log, err)
			return
		}
	}

	ord, err := h.Orders.Checkout(ctx, c.UserID, req.ShippingAddress)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Cache.RememberCheckout(ctx, c.UserID, idemKey, ord.ID); err != nil {
		logger(h.Log).WarnContext(ctx, "remember idempotency key", "order_id", ord.ID, "error", err)
	}
	_ = h.Cache.SetOrderStatus(ctx, ord)

	writeJSON(w, http.StatusCreated, checkoutResp{Order: ord})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFrom(r.Context())
	list, err := h.Orders.ListOrdersForUser(r.Context(), c.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if list == nil {
		list = []shop.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	c, _ := ClaimsFrom(r.Context())
	ord, err := h.Orders.GetOrderForUser(r.Context(), c.UserID, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	c, _ := ClaimsFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if cs, ok := h.Cache.OrderStatus(ctx, id); ok {
		if cs.UserID != c.UserID {
			writeError(w, r, h.Log, shop.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: cs.Status})
		return
	}

	// 2) fallback DB
	ord, err := h.Orders.GetOrderForUser(ctx, c.UserID, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	_ = h.Cache.SetOrderStatus(ctx, ord)
	writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: ord.Status})
}
