package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx"
	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx/jwtxtest"
)

func TestDecode(t *testing.T) {
	exp := time.Unix(1_800_000_000, 0).UTC()
	token := jwtxtest.TokenWithClaims(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
		Role:  "ADMIN",
		Email: "ada@example.com",
	})

	claims, err := jwtx.Decode(token)
	require.NoError(t, err)
	require.Equal(t, "42", claims.Subject)
	require.Equal(t, "ADMIN", claims.PrimaryRole())
	require.Equal(t, "ada@example.com", claims.Email)

	got, ok := claims.Expiry()
	require.True(t, ok)
	require.True(t, got.Equal(exp))
	require.True(t, claims.IssuedAtTime().Equal(exp.Add(-time.Hour)))
}

func TestDecodeMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "a.b", "a.b.c", "x.eyJzdWIiOjF9"} {
		_, err := jwtx.Decode(in)
		require.ErrorIs(t, err, jwtx.ErrMalformed, in)
	}
}

func TestPrimaryRoleFallback(t *testing.T) {
	c := jwtx.Claims{Roles: []string{"ROLE_AGENT", "ROLE_USER"}}
	require.Equal(t, "AGENT", c.PrimaryRole())
	require.Empty(t, (&jwtx.Claims{}).PrimaryRole())
}

func TestIsExpiredBoundary(t *testing.T) {
	exp := time.Unix(1_800_000_000, 0).UTC()
	token := jwtxtest.Token(t, "7", exp)

	t.Run("before exp", func(t *testing.T) {
		require.False(t, jwtx.IsExpired(token, exp.Add(-time.Second)))
	})

	t.Run("at exp", func(t *testing.T) {
		require.True(t, jwtx.IsExpired(token, exp))
	})

	t.Run("after exp", func(t *testing.T) {
		require.True(t, jwtx.IsExpired(token, exp.Add(time.Second)))
	})

	t.Run("garbage is expired", func(t *testing.T) {
		require.True(t, jwtx.IsExpired("not-a-token", exp.Add(-time.Hour)))
	})

	t.Run("no exp never expires", func(t *testing.T) {
		noExp := jwtxtest.TokenWithClaims(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}})
		require.False(t, jwtx.IsExpired(noExp, exp.Add(100*365*24*time.Hour)))
	})
}

func TestExpiresWithin(t *testing.T) {
	exp := time.Unix(1_800_000_000, 0).UTC()
	token := jwtxtest.Token(t, "7", exp)
	window := 5 * time.Minute

	require.False(t, jwtx.ExpiresWithin(token, exp.Add(-10*time.Minute), window))
	require.False(t, jwtx.ExpiresWithin(token, exp.Add(-window), window))
	require.True(t, jwtx.ExpiresWithin(token, exp.Add(-window+time.Second), window))
	require.True(t, jwtx.ExpiresWithin("garbage", exp, window))
}
