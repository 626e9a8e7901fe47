package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/security"
)

const visitorKey = "visitorUID"

// visitorCookieMaxAge keeps the anonymous visitor id stable across
// visits, matching the analytics tag's own cookie lifetime.
const visitorCookieMaxAge = 365 * 24 * 60 * 60

// VisitorMiddleware guarantees every request carries a stable anonymous
// visitor id. When the analytics tag has not set its cookie yet, one is
// minted here so segment lookups and events key to the same visitor
// from the first request on.
func VisitorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := c.Cookie(lytics.CookieVisitor)
		if err != nil || uid == "" {
			uid = c.GetHeader("X-Visitor-ID")
		}
		if uid == "" {
			uid = security.GenerateULID()
			c.SetCookie(lytics.CookieVisitor, uid, visitorCookieMaxAge, "/", "", false, false)
		}
		c.Set(visitorKey, uid)
		c.Next()
	}
}

// GetVisitorUID returns the visitor id attached by VisitorMiddleware.
func GetVisitorUID(c *gin.Context) string {
	return c.GetString(visitorKey)
}
