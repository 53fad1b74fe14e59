package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/service"
	"go.uber.org/zap"
)

const identityKey = "identity"

// AuthMiddleware creates middleware that validates session tokens
func AuthMiddleware(authService *service.AuthService, h *AuthHandlers) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			h.fail(c, core.ErrSessionNotFound)
			return
		}

		identity, err := authService.Validate(c.Request.Context(), token)
		if err != nil {
			h.fail(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// requestLogger logs one line per request. Headers are never logged, so
// bearer tokens stay out of the logs.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
