package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when an access token cannot be decoded at all.
var ErrMalformedToken = errors.New("malformed access token")

// Claims is the subset of identity-provider access token claims the client reads.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenParser reads claims from access tokens issued by the identity provider.
// With a secret it verifies HS256 signatures; without one it only decodes, since the
// backend remains the authority on every request the token is attached to.
type TokenParser struct {
	secret []byte
}

// NewTokenParser creates a parser; an empty secret disables signature verification.
func NewTokenParser(secret string) *TokenParser {
	p := &TokenParser{}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Verifies reports whether the parser checks signatures.
func (p *TokenParser) Verifies() bool {
	return len(p.secret) > 0
}

// Parse decodes the token. Expired tokens still return their claims alongside a
// jwt.ErrTokenExpired error so callers can decide whether to refresh.
func (p *TokenParser) Parse(raw string) (Claims, error) {
	var claims Claims
	if !p.Verifies() {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		if exp := claims.ExpiresAt; exp != nil && !exp.After(time.Now()) {
			return claims, jwt.ErrTokenExpired
		}
		return claims, nil
	}

	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, jwt.ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
		}
		return Claims{}, err
	}
	return claims, nil
}

// Expiry returns the token's exp claim, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
