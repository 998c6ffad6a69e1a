package jwtx

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("jwtx: malformed token")
	ErrExpired   = errors.New("jwtx: token expired")
)

// Claims are the access-token claims the helpdesk backend issues. Only the
// payload segment is read; signatures are the server's business.
type Claims struct {
	jwt.RegisteredClaims

	// Role is the single role claim ("ADMIN", "AGENT", "CUSTOMER", ...).
	Role string `json:"role,omitempty"`

	// Roles is used by older backends instead of Role.
	Roles []string `json:"roles,omitempty"`

	Email string `json:"email,omitempty"`
}

// PrimaryRole returns Role, falling back to the first entry of Roles.
func (c *Claims) PrimaryRole() string {
	if c.Role != "" {
		return c.Role
	}
	if len(c.Roles) > 0 {
		return strings.TrimPrefix(c.Roles[0], "ROLE_")
	}
	return ""
}

// Expiry returns the exp claim and whether it was present.
func (c *Claims) Expiry() (time.Time, bool) {
	if c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}

// IssuedAtTime returns the iat claim or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiredAt reports whether the token is expired at now. Expiry is inclusive:
// a token whose exp equals now is already expired. Tokens without an exp
// claim never expire.
func (c *Claims) ExpiredAt(now time.Time) bool {
	exp, ok := c.Expiry()
	if !ok {
		return false
	}
	return !now.Before(exp)
}

// RemainingAt returns how long the token has left at now. ok is false when
// the token has no exp claim.
func (c *Claims) RemainingAt(now time.Time) (time.Duration, bool) {
	exp, ok := c.Expiry()
	if !ok {
		return 0, false
	}
	return exp.Sub(now), true
}
