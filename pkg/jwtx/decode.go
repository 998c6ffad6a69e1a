package jwtx

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var parser = jwt.NewParser()

// Decode reads the claims out of token without verifying its signature.
// Anything that is not a three segment JWT with a JSON payload yields
// ErrMalformed.
func Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, ErrMalformed
	}

	var claims Claims
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &claims, nil
}

// IsExpired reports whether token is expired at now. A token that cannot be
// decoded is always expired.
func IsExpired(token string, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil {
		return true
	}
	return claims.ExpiredAt(now)
}

// ExpiresWithin reports whether token expires in less than window from now.
// Undecodable tokens are reported as expiring.
func ExpiresWithin(token string, now time.Time, window time.Duration) bool {
	claims, err := Decode(token)
	if err != nil {
		return true
	}
	remaining, ok := claims.RemainingAt(now)
	if !ok {
		return false
	}
	return remaining < window
}
