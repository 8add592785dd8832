package httpx

import (
	"log/slog"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

// Deps is everything the storefront API needs. Cache may be nil.
type Deps struct {
	Catalog *shop.Catalog
	Cart    *shop.Cart
	Orders  *shop.Orders
	Users   *auth.Service
	Tokens  *auth.Tokens
	Cache   *redisx.Cache
	Log     *slog.Logger
}

// Mount registers the public and authenticated storefront routes on r.
func Mount(r chi.Router, d Deps) {
	log := logger(d.Log)
	r.Group(func(r chi.Router) {
		r.Use(TraceRequests)

		(&CatalogHandler{Catalog: d.Catalog, Log: log}).Register(r)
		(&AuthHandler{Users: d.Users, Tokens: d.Tokens, Log: log}).Register(r)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(d.Tokens))
			(&CartHandler{Cart: d.Cart, Log: log}).Register(r)
			(&OrdersHandler{Orders: d.Orders, Cache: d.Cache, Log: log}).Register(r)
		})
	})
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
