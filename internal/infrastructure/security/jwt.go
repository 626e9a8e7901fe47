// Package security provides JWT token utilities
package security

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
)

// ErrInvalidToken is returned when a bearer token fails validation.
var ErrInvalidToken = errors.New("invalid token")

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// IdentityFromToken extracts the visitor identity carried by a backend
// bearer token. The backend issues HS256 tokens with id/email claims.
func IdentityFromToken(tokenString, jwtSecret string) (session.VisitorIdentity, error) {
	claims, err := ValidateJWT(tokenString, jwtSecret)
	if err != nil {
		return session.VisitorIdentity{}, err
	}

	identity := session.VisitorIdentity{}
	for _, key := range []string{"id", "_id", "userId", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			identity.UserID = v
			break
		}
	}
	if email, ok := claims["email"].(string); ok {
		identity.Email = email
	}
	if identity.UserID == "" {
		return session.VisitorIdentity{}, ErrInvalidToken
	}
	return identity, nil
}
