package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTokenResponse(t *testing.T) {
	t.Parallel()

	want := TokenPair{AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", ExpiresIn: 900}

	cases := map[string]string{
		"camelCase":  `{"accessToken":"a1","refreshToken":"r1","tokenType":"Bearer","expiresIn":900}`,
		"snake_case": `{"access_token":"a1","refresh_token":"r1","token_type":"Bearer","expires_in":"900"}`,
		"envelope":   `{"success":true,"data":{"accessToken":"a1","refresh_token":"r1","expiresIn":900.0}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			pair, user, err := normalizeTokenResponse([]byte(body))
			require.NoError(t, err)
			require.Equal(t, want, pair)
			require.Nil(t, user)
		})
	}

	t.Run("embedded user in either naming", func(t *testing.T) {
		body := `{"accessToken":"a1","refreshToken":"r1","user":{"id":42,"email":"ada@example.com","first_name":"Ada","lastName":"Lovelace","role":"AGENT","company_id":7}}`
		_, user, err := normalizeTokenResponse([]byte(body))
		require.NoError(t, err)
		require.Equal(t, &UserProfile{
			ID:        "42",
			Email:     "ada@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
			Role:      "AGENT",
			CompanyID: "7",
		}, user)
		require.Equal(t, "Ada Lovelace", user.DisplayName())
	})

	t.Run("rejects responses without an access token", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"refreshToken":"r1"}`, `[]`, `null`, `nope`} {
			_, _, err := normalizeTokenResponse([]byte(body))
			require.ErrorIs(t, err, ErrMalformedAuth, body)
		}
	})

	t.Run("token type defaults to bearer", func(t *testing.T) {
		pair, _, err := normalizeTokenResponse([]byte(`{"token":"a1"}`))
		require.NoError(t, err)
		require.Equal(t, "Bearer", pair.TokenType)
		require.Empty(t, pair.RefreshToken)
	})
}
