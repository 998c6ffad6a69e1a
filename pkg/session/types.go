package session

import "time"

// UserProfile is the cached profile of the signed-in user.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// DisplayName returns "First Last", falling back to the email address.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Email
}

// TokenPair is the canonical shape of a login or refresh response.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Tokens TokenPair
	User   *UserProfile
}

// Record is the persisted credential record.
type Record struct {
	AccessToken  string
	RefreshToken string
	User         *UserProfile

	// Revision increases on every write. Caches keyed on it are invalid as
	// soon as it changes.
	Revision  int64
	UpdatedAt time.Time
}

// HasTokens reports whether both tokens are present.
func (r Record) HasTokens() bool {
	return r.AccessToken != "" && r.RefreshToken != ""
}

// Normalized returns r with a partial token pair treated as absent.
func (r Record) Normalized() Record {
	if !r.HasTokens() {
		r.AccessToken = ""
		r.RefreshToken = ""
	}
	return r
}
