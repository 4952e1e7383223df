package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pinkflag/backend/internal/models"
)

// Claims are the fields we consume from the identity provider's access
// token. The provider stores the stable user ID in the `sub` claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the stable user identifier carried by the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenVerifier validates HS256 bearer tokens issued by the external
// identity provider. This service never issues or refreshes tokens.
type TokenVerifier struct {
	secret string
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// Verify parses and validates a bearer token, returning its claims. Expired,
// malformed or wrongly-signed tokens return models.ErrUnauthorized.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Subject == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
