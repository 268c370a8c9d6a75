package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cashier@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestTokens_Merge(t *testing.T) {
	prev := &Tokens{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		IDToken:      "old-id",
		UserID:       "cashier",
	}

	tests := []struct {
		name     string
		incoming Tokens
		prev     *Tokens
		expected Tokens
	}{
		{
			name:     "keeps refresh and id tokens when blank",
			incoming: Tokens{AccessToken: "new-access", ExpiresIn: 3600},
			prev:     prev,
			expected: Tokens{AccessToken: "new-access", ExpiresIn: 3600, RefreshToken: "old-refresh", IDToken: "old-id", UserID: "cashier"},
		},
		{
			name:     "rotated refresh token wins",
			incoming: Tokens{AccessToken: "new-access", RefreshToken: "new-refresh"},
			prev:     prev,
			expected: Tokens{AccessToken: "new-access", RefreshToken: "new-refresh", IDToken: "old-id", UserID: "cashier"},
		},
		{
			name:     "no previous value",
			incoming: Tokens{AccessToken: "a"},
			prev:     nil,
			expected: Tokens{AccessToken: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.incoming.Merge(tt.prev))
		})
	}
}

func TestTokens_ExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("id token claim", func(t *testing.T) {
		tokens := Tokens{AccessToken: "opaque", IDToken: signedJWT(t, exp)}
		got, ok := tokens.ExpiresAt()
		require.True(t, ok)
		assert.True(t, exp.Equal(got))
	})

	t.Run("falls back to access token claim", func(t *testing.T) {
		tokens := Tokens{AccessToken: signedJWT(t, exp)}
		got, ok := tokens.ExpiresAt()
		require.True(t, ok)
		assert.True(t, exp.Equal(got))
	})

	t.Run("falls back to expires_in", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
		tokens := Tokens{AccessToken: "opaque", ExpiresIn: 3600, IssuedAt: issued}
		got, ok := tokens.ExpiresAt()
		require.True(t, ok)
		assert.Equal(t, issued.Add(time.Hour), got)
	})

	t.Run("stale id token after refresh", func(t *testing.T) {
		issued := time.Now().Truncate(time.Second)
		prev := &Tokens{AccessToken: "old-access", IDToken: signedJWT(t, issued.Add(-time.Minute)), RefreshToken: "r"}

		tokens := Tokens{AccessToken: "new-access", ExpiresIn: 3600, IssuedAt: issued}.Merge(prev)
		got, ok := tokens.ExpiresAt()

		require.True(t, ok)
		assert.Equal(t, prev.IDToken, tokens.IDToken)
		assert.Equal(t, issued.Add(time.Hour), got)
	})

	t.Run("stale id token falls through to fresh access token", func(t *testing.T) {
		issued := time.Now().Truncate(time.Second)
		tokens := Tokens{
			AccessToken: signedJWT(t, issued.Add(2*time.Hour)),
			IDToken:     signedJWT(t, issued.Add(-time.Minute)),
			ExpiresIn:   3600,
			IssuedAt:    issued,
		}
		got, ok := tokens.ExpiresAt()
		require.True(t, ok)
		assert.True(t, issued.Add(2*time.Hour).Equal(got))
	})

	t.Run("longer id token still wins", func(t *testing.T) {
		issued := time.Now().Truncate(time.Second)
		tokens := Tokens{AccessToken: "opaque", IDToken: signedJWT(t, issued.Add(3*time.Hour)), ExpiresIn: 3600, IssuedAt: issued}
		got, ok := tokens.ExpiresAt()
		require.True(t, ok)
		assert.True(t, issued.Add(3*time.Hour).Equal(got))
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := Tokens{AccessToken: "opaque"}.ExpiresAt()
		assert.False(t, ok)
	})
}
