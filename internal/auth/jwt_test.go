package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseJWT(t *testing.T) {
	tok, err := SignJWT(42, "reader@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "reader@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestParseJWTRejectsBadTokens(t *testing.T) {
	tok, err := SignJWT(42, "reader@example.com", "s3cret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignJWT(42, "reader@example.com", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseJWT("not-a-token", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// HS512 is not accepted even with the right secret.
	other := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 42})
	s, err := other.SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = ParseJWT(s, "s3cret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignJWTRequiresSecret(t *testing.T) {
	_, err := SignJWT(1, "", "", time.Hour)
	assert.Error(t, err)
}
