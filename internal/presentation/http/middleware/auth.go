// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/security"
	"github.com/stockapp/stockapp-go/pkg/config"
)

const (
	identityKey = "visitorIdentity"
	tokenKey    = "bearerToken"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// IdentityMiddleware decodes the bearer token when present and attaches
// the visitor identity to the request context. Requests without a valid
// token proceed anonymously.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token != "" {
			if identity, err := security.IdentityFromToken(token, config.JWTSecret); err == nil {
				c.Set(identityKey, identity)
				c.Set(tokenKey, token)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token. The 401
// payload instructs the SPA to discard its token and return to login.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "redirect": "/login"})
			return
		}
		identity, err := security.IdentityFromToken(token, config.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token", "redirect": "/login"})
			return
		}
		c.Set(identityKey, identity)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// GetIdentity returns the visitor identity attached by the middleware.
// The zero identity is the anonymous visitor.
func GetIdentity(c *gin.Context) session.VisitorIdentity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(session.VisitorIdentity); ok {
			return identity
		}
	}
	return session.VisitorIdentity{}
}

// GetToken returns the raw bearer token, empty for anonymous requests.
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// SegmentRequestFrom builds the segment lookup inputs from the
// analytics cookies the browser sent along.
func SegmentRequestFrom(c *gin.Context) services.SegmentRequest {
	req := services.SegmentRequest{}
	if cookie, err := c.Cookie(lytics.CookieSegments); err == nil {
		req.SegsCookie = cookie
	}
	if cookie, err := c.Cookie(lytics.CookieVisitor); err == nil {
		req.VisitorUID = cookie
	}
	if req.VisitorUID == "" {
		req.VisitorUID = GetVisitorUID(c)
	}
	if req.VisitorUID == "" {
		req.VisitorUID = c.GetHeader("X-Visitor-ID")
	}
	return req
}
