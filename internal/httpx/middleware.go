package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5/middleware"
)

type claimsKey struct{}

// TokenVerifier is satisfied by *auth.Tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func RequireAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			tok, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(tok) == "" {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
				return
			}
			c, err := v.Verify(r.Context(), strings.TrimSpace(tok))
			if err != nil {
				writeError(w, r, nil, err)
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey{}, c)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom returns the claims stored by RequireAuth.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

// TraceRequests copies the chi request id into the shop trace id so events
// published while serving the request carry it.
func TraceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shop.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
