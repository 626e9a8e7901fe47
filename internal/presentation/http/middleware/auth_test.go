package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockapp/stockapp-go/internal/domain/entities/session"
	"github.com/stockapp/stockapp-go/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.JWTSecret))
	require.NoError(t, err)
	return signed
}

func performRequest(router *gin.Engine, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func identityProbe(mw gin.HandlerFunc) (*gin.Engine, *session.VisitorIdentity) {
	captured := &session.VisitorIdentity{}
	r := gin.New()
	r.GET("/probe", mw, func(c *gin.Context) {
		*captured = GetIdentity(c)
		c.Status(http.StatusOK)
	})
	return r, captured
}

func TestIdentityMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"id":    "u-1",
		"email": "u1@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	r, captured := identityProbe(IdentityMiddleware())
	w := performRequest(r, map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", captured.UserID)
	assert.Equal(t, "u1@example.com", captured.Email)
}

func TestIdentityMiddleware_MissingTokenIsAnonymous(t *testing.T) {
	r, captured := identityProbe(IdentityMiddleware())
	w := performRequest(r, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, captured.IsAnonymous())
}

func TestIdentityMiddleware_GarbageTokenIsAnonymous(t *testing.T) {
	r, captured := identityProbe(IdentityMiddleware())
	w := performRequest(r, map[string]string{"Authorization": "Bearer not-a-jwt"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, captured.IsAnonymous())
}

func TestRequireAuth_RejectsMissingToken(t *testing.T) {
	r, _ := identityProbe(RequireAuth())
	w := performRequest(r, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
}

func TestRequireAuth_RejectsExpiredToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"id":  "u-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	r, _ := identityProbe(RequireAuth())
	w := performRequest(r, map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
}

func TestRequireAuth_AcceptsValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"_id": "u-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	r, captured := identityProbe(RequireAuth())
	w := performRequest(r, map[string]string{"Authorization": "Bearer " + token})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-2", captured.UserID)
}

func TestSegmentRequestFrom_ReadsAnalyticsCookies(t *testing.T) {
	r := gin.New()
	var got string
	var visitor string
	r.GET("/probe", func(c *gin.Context) {
		req := SegmentRequestFrom(c)
		got = req.SegsCookie
		visitor = req.VisitorUID
		c.Status(http.StatusOK)
	})

	performRequest(r, nil,
		&http.Cookie{Name: "ly_segs", Value: "high_value_traders"},
		&http.Cookie{Name: "seerid", Value: "v-123"},
	)

	assert.Equal(t, "high_value_traders", got)
	assert.Equal(t, "v-123", visitor)
}

func TestSegmentRequestFrom_HeaderFallbackForVisitorUID(t *testing.T) {
	r := gin.New()
	var visitor string
	r.GET("/probe", func(c *gin.Context) {
		visitor = SegmentRequestFrom(c).VisitorUID
		c.Status(http.StatusOK)
	})

	performRequest(r, map[string]string{"X-Visitor-ID": "v-9"})
	assert.Equal(t, "v-9", visitor)
}
