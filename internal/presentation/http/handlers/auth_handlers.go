// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/trading"
	"github.com/stockapp/stockapp-go/internal/presentation/http/middleware"
)

// AuthHandlers contains all authentication-related HTTP handlers
type AuthHandlers struct {
	authService *services.AuthService
	logger      *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(authService *services.AuthService, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// respondBackendError translates trading backend failures into the
// response contract: 401 carries the forced-logout payload, other
// backend statuses pass through.
func respondBackendError(c *gin.Context, err error) {
	if errors.Is(err, trading.ErrAuthExpired) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication expired", "redirect": "/login"})
		return
	}
	var apiErr *trading.APIError
	if errors.As(err, &apiErr) {
		c.Data(apiErr.StatusCode, "application/json", []byte(apiErr.Body))
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "trading backend unavailable"})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// PostLogin handles POST /api/v1/auth/login
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	start := time.Now()
	result, flags, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, middleware.SegmentRequestFrom(c))
	if err != nil {
		h.logger.Auth().Debug("Login rejected", "email", req.Email, "duration", time.Since(start))
		respondBackendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Token,
		"user":  result.User,
		"flags": flags,
	})
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
}

// PostSignup handles POST /api/v1/auth/signup
func (h *AuthHandlers) PostSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, email and password are required"})
		return
	}

	result, flags, err := h.authService.Signup(c.Request.Context(), req.Name, req.Email, req.Password, req.Phone, middleware.SegmentRequestFrom(c))
	if err != nil {
		respondBackendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": result.Token,
		"user":  result.User,
		"flags": flags,
	})
}

// GetMe handles GET /api/v1/auth/me - validates the stored token on
// page load and re-attaches the personalization session
func (h *AuthHandlers) GetMe(c *gin.Context) {
	token := middleware.GetToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "redirect": "/login"})
		return
	}

	user, flags, err := h.authService.Restore(c.Request.Context(), token, middleware.SegmentRequestFrom(c))
	if err != nil {
		respondBackendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user,
		"flags": flags,
	})
}

// PostLogout handles POST /api/v1/auth/logout
func (h *AuthHandlers) PostLogout(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	h.authService.Logout(identity.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}
