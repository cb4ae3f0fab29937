package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/contentflow/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("s3cret", "user-1", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "contentflow", claims.Issuer)
}

func TestValidateToken_Rejects(t *testing.T) {
	valid, err := GenerateToken("s3cret", "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("s3cret", "user-1", -time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, transfer.CustomClaims{
		UserID:           "user-1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})
	foreignToken, err := foreign.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	cases := map[string]struct {
		secret string
		token  string
	}{
		"wrong secret": {"other", valid},
		"expired":      {"s3cret", expired},
		"wrong issuer": {"s3cret", foreignToken},
		"garbage":      {"s3cret", "not-a-token"},
		"empty":        {"s3cret", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateToken(tc.secret, tc.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateToken_RequiresSecret(t *testing.T) {
	_, err := GenerateToken("", "user-1", time.Hour)
	assert.Error(t, err)
}
