package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("s3cret", "cli", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Subject)
	assert.Equal(t, "rippers", claims.Issuer)
	require.NotNil(t, claims.ExpiresAt)
}

func TestTokenRejections(t *testing.T) {
	_, err := GenerateToken("", "cli", time.Hour)
	assert.Error(t, err)

	token, err := GenerateToken("s3cret", "cli", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken("other", token)
	assert.Error(t, err)

	forever, err := GenerateToken("s3cret", "cli", 0)
	require.NoError(t, err)
	_, err = ParseToken("s3cret", forever)
	assert.NoError(t, err)

	past := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "rippers",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := past.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseToken("s3cret", signed)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone"}})
	signed, err = foreign.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseToken("s3cret", signed)
	assert.Error(t, err)

	_, err = ParseToken("s3cret", "not.a.token")
	assert.Error(t, err)
}
