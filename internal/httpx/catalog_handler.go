package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	Catalog *shop.Catalog
	Log     *slog.Logger
}

type productDetail struct {
	Product shop.Product   `json:"product"`
	Related []shop.Product `json:"related"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/featured", h.featured)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	ps, err := h.Catalog.ListProducts(ctx, shop.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Skip:     intQuery(r, "skip", 0),
		Limit:    intQuery(r, "limit", shop.DefaultPageLimit),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) featured(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.FeaturedProducts(ctx, intQuery(r, "limit", shop.DefaultFeaturedLimit))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		badRequest(w, "invalid id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	related, err := h.Catalog.RelatedProducts(ctx, p.CategoryID, p.ID, shop.DefaultRelatedLimit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, productDetail{Product: p, Related: related})
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
