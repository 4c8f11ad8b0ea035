package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWTToken("secret", "alice", "alice@example.test", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseJWTToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "alice@example.test", claims.Email)

	_, err = ParseJWTToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWTTokenExpired(t *testing.T) {
	token, err := GenerateJWTToken("secret", "alice", "", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParseJWTToken("secret", token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseJWTTokenRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseJWTToken("secret", signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseJWTTokenRequiresSubject(t *testing.T) {
	token, err := GenerateJWTToken("secret", "", "", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = ParseJWTToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "abc", "Basic abc", "Bearer", "Bearer "} {
		_, ok := BearerToken(h)
		assert.False(t, ok, h)
	}
}
