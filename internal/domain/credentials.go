package domain

import "time"

// Credentials is the single persisted credential row. Token and profile
// columns may be sealed; the store does not look inside them.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserProfile  string // JSON, possibly sealed; empty when no profile is cached
	Revision     int64
	UpdatedAt    time.Time
}

// HasTokens reports whether both token columns are populated.
func (c Credentials) HasTokens() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}
