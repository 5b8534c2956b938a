// Package auth issues and verifies player access tokens (HS256 JWTs).
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers every rejected token: bad signature, wrong
	// algorithm, expired, or missing subject.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingToken is returned when a request carries no token.
	ErrMissingToken = errors.New("missing token")
)

const issuer = "pf-slots"

// Claims are the token claims. The subject is the player ID.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with one HMAC key.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an issuer. Keys shorter than 32 bytes are rejected.
func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("auth: signing key must be at least 32 bytes, got %d", len(key))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for player.
func (i *Issuer) Issue(player string) (string, time.Time, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return "", time.Time{}, fmt.Errorf("auth: player is required")
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   player,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks tokenStr and returns the player it was issued to.
func (i *Issuer) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected token signing method")
		}
		return i.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", fmt.Errorf("auth: %w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("auth: %w: no subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

type ctxKey struct{}

// WithPlayer stores the authenticated player on ctx.
func WithPlayer(ctx context.Context, player string) context.Context {
	return context.WithValue(ctx, ctxKey{}, player)
}

// PlayerFrom returns the authenticated player, if any.
func PlayerFrom(ctx context.Context) (string, bool) {
	player, ok := ctx.Value(ctxKey{}).(string)
	return player, ok && player != ""
}
