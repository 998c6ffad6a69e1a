package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Field aliases accepted from the backend. The first name of each list is
// the canonical camelCase spelling.
var (
	accessTokenKeys  = []string{"accessToken", "access_token", "token"}
	refreshTokenKeys = []string{"refreshToken", "refresh_token"}
	tokenTypeKeys    = []string{"tokenType", "token_type"}
	expiresInKeys    = []string{"expiresIn", "expires_in"}
)

// normalizeTokenResponse is the one place where backend response shapes are
// reconciled. It accepts camelCase or snake_case fields, optionally wrapped
// in a {"data": ...} envelope, and returns the canonical TokenPair plus the
// embedded user profile when there is one.
func normalizeTokenResponse(body []byte) (TokenPair, *UserProfile, error) {
	fields, err := objectFields(body)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("%w: %v", ErrMalformedAuth, err)
	}

	if inner, ok := fields["data"]; ok && !hasAny(fields, accessTokenKeys) {
		if fields, err = objectFields(inner); err != nil {
			return TokenPair{}, nil, fmt.Errorf("%w: data: %v", ErrMalformedAuth, err)
		}
	}

	pair := TokenPair{
		AccessToken:  pickString(fields, accessTokenKeys...),
		RefreshToken: pickString(fields, refreshTokenKeys...),
		TokenType:    pickString(fields, tokenTypeKeys...),
		ExpiresIn:    pickInt(fields, expiresInKeys...),
	}
	if pair.AccessToken == "" {
		return TokenPair{}, nil, fmt.Errorf("%w: missing access token", ErrMalformedAuth)
	}
	if pair.TokenType == "" {
		pair.TokenType = "Bearer"
	}

	var user *UserProfile
	if raw, ok := fields["user"]; ok && !isNull(raw) {
		if user, err = normalizeUser(raw); err != nil {
			return TokenPair{}, nil, err
		}
	}
	return pair, user, nil
}

// normalizeUser decodes a user object in either naming convention. Numeric
// ids are kept in their decimal form.
func normalizeUser(raw []byte) (*UserProfile, error) {
	fields, err := objectFields(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrMalformedAuth, err)
	}
	return &UserProfile{
		ID:        pickString(fields, "id", "userId", "user_id"),
		Email:     pickString(fields, "email"),
		FirstName: pickString(fields, "firstName", "first_name"),
		LastName:  pickString(fields, "lastName", "last_name"),
		Role:      pickString(fields, "role"),
		CompanyID: pickString(fields, "companyId", "company_id"),
	}, nil
}

func objectFields(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return fields, nil
}

func hasAny(fields map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

// pickString returns the first key that holds a string or a number.
func pickString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func pickInt(fields map[string]json.RawMessage, keys ...string) int64 {
	for _, k := range keys {
		s := pickString(fields, k)
		if s == "" {
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
