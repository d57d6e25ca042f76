package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/bb-booking/beautyboosters/internal/domain"
)

func TestTokens_MintVerify(t *testing.T) {
	tokens := NewTokens("s3cret", "beautyboosters", time.Hour)
	raw, err := tokens.Mint(domain.Actor{ID: "bst_anna", Role: domain.RoleBooster})
	require.NoError(t, err)

	actor, err := tokens.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, domain.Actor{ID: "bst_anna", Role: domain.RoleBooster}, actor)
}

func TestTokens_Rejects(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tokens := NewTokens("s3cret", "beautyboosters", time.Hour)
	tokens.now = func() time.Time { return now }

	valid, err := tokens.Mint(domain.Actor{ID: "cus_1", Role: domain.RoleCustomer})
	require.NoError(t, err)

	other := NewTokens("s3cret", "someone-else", time.Hour)
	other.now = tokens.now
	foreign, err := other.Mint(domain.Actor{ID: "cus_1", Role: domain.RoleCustomer})
	require.NoError(t, err)

	wrongKey := NewTokens("another", "beautyboosters", time.Hour)
	wrongKey.now = tokens.now
	forged, err := wrongKey.Mint(domain.Actor{ID: "adm_1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	system, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(domain.RoleSystem),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sweeper",
			Issuer:    "beautyboosters",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             string(domain.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "adm_1", Issuer: "beautyboosters"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		raw   string
		after time.Duration
	}{
		{name: "empty", raw: ""},
		{name: "garbage", raw: "not.a.jwt"},
		{name: "expired", raw: valid, after: 2 * time.Hour},
		{name: "wrong issuer", raw: foreign},
		{name: "wrong key", raw: forged},
		{name: "system role", raw: system},
		{name: "no expiry", raw: noExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens.now = func() time.Time { return now.Add(tt.after) }
			_, err := tokens.Verify(tt.raw)
			if !errors.Is(err, domain.ErrUnauthenticated) {
				t.Fatalf("Verify error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestTokens_MintRefusesSystem(t *testing.T) {
	tokens := NewTokens("s3cret", "", 0)
	_, err := tokens.Mint(domain.SystemActor)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = tokens.Mint(domain.Actor{Role: domain.RoleAdmin})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}
