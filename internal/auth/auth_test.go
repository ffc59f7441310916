package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RoundTrip(t *testing.T) {
	s := NewService("secret", time.Hour)
	token, err := s.GenerateToken("u1")
	require.NoError(t, err)

	userID, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestService_Rejects(t *testing.T) {
	s := NewService("secret", time.Hour)
	other, err := NewService("other", time.Hour).GenerateToken("u1")
	require.NoError(t, err)

	expired, err := NewService("secret", -time.Minute).GenerateToken("u1")
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"wrong secret": other,
		"expired":      expired,
		"no user id":   noUser,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.ValidateToken(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
