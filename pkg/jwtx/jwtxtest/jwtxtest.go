// Package jwtxtest mints unsigned-for-purpose HS256 tokens for tests. The
// session layer never verifies signatures, so the key is fixed.
package jwtxtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/talhabektas/smartdesk-sub000/pkg/jwtx"
)

var key = []byte("jwtxtest-signing-key")

// Token returns a signed token for subject expiring at exp.
func Token(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	return TokenWithClaims(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-15 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role:  "AGENT",
		Email: subject + "@example.com",
	})
}

// TokenWithClaims signs arbitrary claims.
func TokenWithClaims(t testing.TB, claims jwtx.Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}
