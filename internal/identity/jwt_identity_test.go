package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexta-labs/filingsrag/internal/core"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestCurrentUserID_ValidToken(t *testing.T) {
	p := NewJWTIdentityProvider("secret")
	tok := signToken(t, "secret", jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	id, err := p.CurrentUserID(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id)
}

func TestCurrentUserID_WrongSecretRejected(t *testing.T) {
	p := NewJWTIdentityProvider("secret")
	tok := signToken(t, "other-secret", jwt.MapClaims{"user_id": "user-123"})

	_, err := p.CurrentUserID(context.Background(), tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCurrentUserID_MissingClaimRejected(t *testing.T) {
	p := NewJWTIdentityProvider("secret")
	tok := signToken(t, "secret", jwt.MapClaims{"email": "x@example.com"})

	_, err := p.CurrentUserID(context.Background(), tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCurrentUserID_ExpiredTokenRejected(t *testing.T) {
	p := NewJWTIdentityProvider("secret")
	tok := signToken(t, "secret", jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	_, err := p.CurrentUserID(context.Background(), tok)
	require.Error(t, err)
}
