// Package auth verifies bearer tokens and turns them into engine actors.
package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens carrying a subject and a role.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Mint issues a token for actor.
func (t *Tokens) Mint(actor domain.Actor) (string, error) {
	if actor.ID == "" || !actor.Role.Valid() || actor.Role == domain.RoleSystem {
		return "", domain.ErrUnauthenticated
	}
	now := t.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify parses a token and returns the actor it names. Every failure wraps
// domain.ErrUnauthenticated.
func (t *Tokens) Verify(raw string) (domain.Actor, error) {
	if raw == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return domain.Actor{}, fmt.Errorf("%w: invalid claims", domain.ErrUnauthenticated)
	}

	actor := domain.Actor{ID: claims.Subject, Role: domain.Role(claims.Role)}
	if actor.ID == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing subject", domain.ErrUnauthenticated)
	}
	if !actor.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthenticated, claims.Role)
	}
	if actor.Role == domain.RoleSystem {
		// The system role is only for in-process work such as the sweeper.
		return domain.Actor{}, errors.Join(domain.ErrUnauthenticated, errors.New("system tokens are not accepted"))
	}
	return actor, nil
}
