package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Users  *auth.Service
	Tokens *auth.Tokens
	Log    *slog.Logger
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        shop.User `json:"user"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.With(RequireAuth(h.Tokens)).Post("/auth/logout", h.logout)
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	u, err := h.Users.CreateUser(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	u, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, code int, u shop.User) {
	tok, c, err := h.Tokens.Issue(u)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, code, tokenResp{AccessToken: tok, TokenType: "bearer", ExpiresAt: c.ExpiresAt, User: u})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFrom(r.Context())
	if err := h.Tokens.Revoke(r.Context(), c); err != nil {
		// tanpa redis token tetap berlaku sampai expired; client cukup buang tokennya
		logger(h.Log).WarnContext(r.Context(), "token not revoked", "user_id", c.UserID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
