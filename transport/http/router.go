package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/keyauth/service"
	"go.uber.org/zap"
)

// Config carries the transport policy
type Config struct {
	// AccountNotFoundStatus is 404 to reveal unknown accounts, anything else
	// folds them into 401.
	AccountNotFoundStatus int
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger *zap.Logger, cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery())

	handlers := NewAuthHandlers(authService, logger, cfg)

	router.GET("/info", handlers.Info)
	router.POST("/challenge", handlers.Challenge)
	router.POST("/verify", handlers.Verify)
	router.POST("/logout", handlers.Logout)
	router.GET("/healthz", handlers.Healthz)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, handlers))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
