// Package identity implements core.IdentityProvider, the narrow claim
// extraction step the teacher's JWTMiddleware performs inline. User
// authentication itself (signup/login, token issuance) is out of scope;
// this package only ever reads an already-issued bearer token.
package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/contexta-labs/filingsrag/internal/core"
)

// JWTIdentityProvider validates a bearer token against a shared secret
// and extracts the "user_id" claim, same claim name and
// ParseWithClaims shape as the teacher's JWTMiddleware.
type JWTIdentityProvider struct {
	secret []byte
}

func NewJWTIdentityProvider(secret string) *JWTIdentityProvider {
	return &JWTIdentityProvider{secret: []byte(secret)}
}

var _ core.IdentityProvider = (*JWTIdentityProvider)(nil)

func (p *JWTIdentityProvider) CurrentUserID(ctx context.Context, bearerToken string) (string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(bearerToken, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: parse bearer token: %v", core.ErrValidation, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: bearer token invalid", core.ErrValidation)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: bearer token missing user_id claim", core.ErrValidation)
	}
	return userID, nil
}
