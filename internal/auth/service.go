package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

const minPasswordLen = 8

// UserStore is the subset of shop.Queries the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *shop.User) error
	UserByEmail(ctx context.Context, email string) (shop.User, error)
	UserByID(ctx context.Context, id int64) (shop.User, error)
}

type Service struct {
	Users UserStore
}

func NewService(users UserStore) *Service { return &Service{Users: users} }

// CreateUser registers an active user. A taken email is a *shop.ValidationError.
func (s *Service) CreateUser(ctx context.Context, email, password, fullName string) (shop.User, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)
	if _, err := mail.ParseAddress(email); err != nil {
		return shop.User{}, &shop.ValidationError{Field: "email", Message: "invalid address"}
	}
	if len(password) < minPasswordLen {
		return shop.User{}, &shop.ValidationError{Field: "password", Message: "must be at least 8 characters"}
	}
	if fullName == "" {
		return shop.User{}, &shop.ValidationError{Field: "full_name", Message: "required"}
	}

	hash, err := HashPassword(password)
	if passwordTooLong(err) {
		return shop.User{}, &shop.ValidationError{Field: "password", Message: "too long"}
	}
	if err != nil {
		return shop.User{}, err
	}
	u := shop.User{Email: email, FullName: fullName, PasswordHash: hash, IsActive: true}
	if err := s.Users.CreateUser(ctx, &u); err != nil {
		return shop.User{}, err
	}
	return u, nil
}

// Authenticate checks credentials. Unknown email, wrong password and inactive
// accounts all yield shop.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (shop.User, error) {
	u, err := s.Users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, shop.ErrNotFound) {
		return shop.User{}, shop.ErrInvalidCredentials
	}
	if err != nil {
		return shop.User{}, err
	}
	if !u.IsActive || !VerifyPassword(password, u.PasswordHash) {
		return shop.User{}, shop.ErrInvalidCredentials
	}
	return u, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
