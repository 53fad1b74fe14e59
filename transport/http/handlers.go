package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/service"
	"go.uber.org/zap"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService            *service.AuthService
	logger                 *zap.Logger
	accountNotFoundVisible bool
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *zap.Logger, cfg Config) *AuthHandlers {
	return &AuthHandlers{
		authService:            authService,
		logger:                 logger,
		accountNotFoundVisible: cfg.AccountNotFoundStatus == http.StatusNotFound,
	}
}

const genericFailure = "authentication failed"

// Info describes the service signing key and network
func (h *AuthHandlers) Info(c *gin.Context) {
	c.JSON(http.StatusOK, h.authService.Info())
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id" binding:"required"`
		Domain    string `json:"domain" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, core.ErrMalformedEnvelope)
		return
	}

	challenge, err := h.authService.IssueChallenge(c.Request.Context(), req.AccountID, req.Domain)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"envelope": core.Envelope{
			Challenge:  challenge.Token,
			Signatures: []core.DecoratedSignature{},
		},
		"network_id": h.authService.Info().NetworkID,
		"expires_at": challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify exchanges a co-signed envelope for a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Envelope json.RawMessage `json:"envelope" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, core.ErrMalformedEnvelope)
		return
	}

	session, err := h.authService.Verify(c.Request.Context(), req.Envelope, map[string]string{
		"user_agent":  c.Request.UserAgent(),
		"remote_addr": c.ClientIP(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339),
		"account_id": session.AccountID,
	})
}

// Logout revokes the bearer session. It answers 200 for any token, known or
// not; only a store failure is reported.
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, _ := bearerToken(c)

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// Me returns the account of the authenticated session
func (h *AuthHandlers) Me(c *gin.Context) {
	identity, ok := c.Get(identityKey)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "identity not found in context"})
		return
	}

	id := identity.(core.VerifiedIdentity)
	c.JSON(http.StatusOK, gin.H{
		"account_id": id.AccountID,
		"expires_at": id.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Healthz reports liveness
func (h *AuthHandlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes the client-facing form of err. Which check failed stays in the
// logs; clients only learn the coarse class.
func (h *AuthHandlers) fail(c *gin.Context, err error) {
	status, code := h.classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error_code": code, "error": genericFailure})
}

func (h *AuthHandlers) classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAccount),
		errors.Is(err, core.ErrDomainMismatch),
		errors.Is(err, core.ErrMalformedEnvelope):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, core.ErrAccountNotFound):
		if h.accountNotFoundVisible {
			return http.StatusNotFound, "account_not_found"
		}
		return http.StatusUnauthorized, "authentication_failed"
	case core.Transient(err):
		return http.StatusServiceUnavailable, "service_unavailable"
	case core.Kind(err) != nil:
		return http.StatusUnauthorized, "authentication_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
