package httpx

import (
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CartHandler serves the authenticated user's cart. Routes must be mounted
// behind RequireAuth.
type CartHandler struct {
	Cart *shop.Cart
	Log  *slog.Logger
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

type updateItemReq struct {
	Quantity *int `json:"quantity"`
}

type cartResp struct {
	Items []shop.CartItem `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Delete("/cart", h.clear)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{id}", h.updateItem)
	r.Delete("/cart/items/{id}", h.removeItem)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFrom(r.Context())
	items, err := h.Cart.Items(r.Context(), c.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if items == nil {
		items = []shop.CartItem{}
	}
	writeJSON(w, http.StatusOK, cartResp{Items: items, Total: shop.ComputeTotal(items)})
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	c, _ := ClaimsFrom(r.Context())
	item, err := h.Cart.AddItem(r.Context(), c.UserID, req.ProductID, qty)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	var req updateItemReq
	if err := decode(r, &req); err != nil || req.Quantity == nil {
		badRequest(w, "quantity required")
		return
	}
	c, _ := ClaimsFrom(r.Context())
	item, removed, err := h.Cart.UpdateItem(r.Context(), c.UserID, id, *req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if removed {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	c, _ := ClaimsFrom(r.Context())
	if err := h.Cart.RemoveItem(r.Context(), c.UserID, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFrom(r.Context())
	if err := h.Cart.Clear(r.Context(), c.UserID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
