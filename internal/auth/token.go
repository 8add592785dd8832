package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/shop"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 30 * time.Minute

// Claims is the typed payload of an access token.
type Claims struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type jwtClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Revoker remembers logged-out token ids until they expire.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

func NewTokens(secret string, ttl time.Duration, revoker Revoker) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, revoker: revoker, now: time.Now}
}

// Issue signs a token for u.
func (t *Tokens) Issue(u shop.User) (string, Claims, error) {
	now := t.now().UTC().Truncate(time.Second)
	c := Claims{
		UserID:    u.ID,
		Email:     u.Email,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(t.ttl),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email: c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(c.UserID, 10),
			ID:        c.TokenID,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})
	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return s, c, nil
}

// Verify parses and validates a token. Every failure wraps shop.ErrInvalidToken.
func (t *Tokens) Verify(ctx context.Context, token string) (Claims, error) {
	var jc jwtClaims
	_, err := jwt.ParseWithClaims(token, &jc, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", shop.ErrInvalidToken, err)
	}
	uid, err := strconv.ParseInt(jc.Subject, 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad subject", shop.ErrInvalidToken)
	}
	c := Claims{UserID: uid, Email: jc.Email, TokenID: jc.ID}
	if jc.IssuedAt != nil {
		c.IssuedAt = jc.IssuedAt.Time
	}
	if jc.ExpiresAt != nil {
		c.ExpiresAt = jc.ExpiresAt.Time
	}

	if t.revoker != nil && c.TokenID != "" {
		revoked, err := t.revoker.IsRevoked(ctx, c.TokenID)
		if err != nil {
			return Claims{}, err
		}
		if revoked {
			return Claims{}, fmt.Errorf("%w: revoked", shop.ErrInvalidToken)
		}
	}
	return c, nil
}

// Revoke invalidates the token for the rest of its lifetime.
func (t *Tokens) Revoke(ctx context.Context, c Claims) error {
	if t.revoker == nil {
		return errors.New("token revocation not configured")
	}
	ttl := c.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return nil
	}
	return t.revoker.Revoke(ctx, c.TokenID, ttl)
}
