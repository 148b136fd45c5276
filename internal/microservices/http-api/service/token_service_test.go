package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := NewTokenService("test-secret")

	signed, err := tokens.IssueToken("user-1", "Alice", time.Hour)
	require.NoError(t, err)

	claims, err := tokens.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Alice", claims.UserName)
}

func TestTokenService_Rejects(t *testing.T) {
	tokens := NewTokenService("test-secret")

	expired, err := tokens.IssueToken("user-1", "Alice", -time.Minute)
	require.NoError(t, err)

	foreign, err := NewTokenService("other-secret").IssueToken("user-1", "Alice", time.Hour)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": "Alice"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired": expired,
		"foreign": foreign,
		"no user": noUser,
		"garbage": "not-a-jwt",
		"empty":   "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.ValidateToken(tok)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
